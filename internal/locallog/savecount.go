package locallog

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hoshidori/hoshidori/internal/storage"
)

// interstitialEvery is how many saves pass between interstitial prompts.
const interstitialEvery = 3

// IncrementSaveCount bumps the persisted save counter and returns the new
// value. A missing or non-numeric counter restarts from zero.
func (s *Store) IncrementSaveCount() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	raw, ok, err := s.kv.GetItem(storage.KeySaveCount)
	if err != nil {
		s.logger.Warn("save counter unreadable, restarting", "error", err)
	} else if ok {
		if v, perr := strconv.Atoi(strings.TrimSpace(raw)); perr == nil {
			n = v
		}
	}
	n++
	if err := s.kv.SetItem(storage.KeySaveCount, strconv.Itoa(n)); err != nil {
		return n, fmt.Errorf("writing save counter: %w", err)
	}
	return n, nil
}

// ShouldShowInterstitial reports whether the given save count earns a prompt.
func ShouldShowInterstitial(count int) bool {
	return count > 0 && count%interstitialEvery == 0
}
