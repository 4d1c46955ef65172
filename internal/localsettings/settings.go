// Package localsettings stores the guest profile (display name, initial and
// image URL) in a single JSON slot.
package localsettings

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/hoshidori/hoshidori/internal/storage"
)

const defaultInitial = "G"

// Settings is the stored shape.
type Settings struct {
	DisplayName     string  `json:"displayName"`
	ProfileInitial  string  `json:"profileInitial"`
	ProfileImageURL *string `json:"profileImageUrl"`
}

// Defaults are merged under whatever the slot holds.
func Defaults() Settings {
	return Settings{ProfileInitial: defaultInitial}
}

type Store struct {
	kv     storage.KV
	logger *slog.Logger
	mu     sync.Mutex
}

func New(kv storage.KV) *Store {
	return &Store{kv: kv, logger: slog.Default()}
}

// Get returns the stored settings over the defaults. An unreadable slot
// yields the defaults.
func (s *Store) Get() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *Store) DisplayName() string { return s.Get().DisplayName }

// ProfileInitial is the uppercased first letter of the display name, then
// the stored initial, then "G".
func (s *Store) ProfileInitial() string {
	st := s.Get()
	if r, _ := utf8.DecodeRuneInString(st.DisplayName); st.DisplayName != "" {
		return string(unicode.ToUpper(r))
	}
	if st.ProfileInitial != "" {
		return st.ProfileInitial
	}
	return defaultInitial
}

// SetDisplayName stores name and derives the profile initial from it.
func (s *Store) SetDisplayName(name string) error {
	return s.update(func(st *Settings) {
		st.DisplayName = name
		if r, _ := utf8.DecodeRuneInString(name); name != "" {
			st.ProfileInitial = string(unicode.ToUpper(r))
		} else {
			st.ProfileInitial = defaultInitial
		}
	})
}

func (s *Store) ProfileImageURL() string {
	if u := s.Get().ProfileImageURL; u != nil {
		return *u
	}
	return ""
}

// SetProfileImageURL stores url; "" clears it.
func (s *Store) SetProfileImageURL(url string) error {
	return s.update(func(st *Settings) {
		if url == "" {
			st.ProfileImageURL = nil
			return
		}
		st.ProfileImageURL = &url
	})
}

// Clear removes the slot so every accessor reports defaults.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.kv.RemoveItem(storage.KeyLocalSettings); err != nil {
		return fmt.Errorf("clearing local settings: %w", err)
	}
	return nil
}

func (s *Store) update(fn func(*Settings)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.read()
	fn(&st)
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encoding local settings: %w", err)
	}
	if err := s.kv.SetItem(storage.KeyLocalSettings, string(data)); err != nil {
		return fmt.Errorf("writing local settings: %w", err)
	}
	return nil
}

func (s *Store) read() Settings {
	st := Defaults()
	raw, ok, err := s.kv.GetItem(storage.KeyLocalSettings)
	if err != nil {
		s.logger.Warn("local settings unreadable, using defaults", "error", err)
		return st
	}
	if !ok || raw == "" {
		return st
	}
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		s.logger.Warn("local settings corrupt, using defaults", "error", err)
		return Defaults()
	}
	return st
}
