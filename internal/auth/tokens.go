// Package auth persists the access/refresh token pair in the client's slot store.
package auth

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hoshidori/hoshidori/internal/storage"
)

const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// TokenStore reads and writes the token pair. Reads never fail: a missing or
// unreadable slot is reported as "".
type TokenStore struct {
	kv     storage.KV
	logger *slog.Logger
	parser *jwt.Parser
}

func NewTokenStore(kv storage.KV) *TokenStore {
	return &TokenStore{
		kv:     kv,
		logger: slog.Default(),
		parser: jwt.NewParser(),
	}
}

// AccessToken returns the stored access token. A refresh token found in the
// access slot is treated as absent.
func (s *TokenStore) AccessToken() string {
	t := s.read(storage.KeyAccessToken)
	if t == "" {
		return ""
	}
	if typ, ok := s.TokenType(t); ok && typ == TypeRefresh {
		return ""
	}
	return t
}

func (s *TokenStore) RefreshToken() string {
	return s.read(storage.KeyRefreshToken)
}

func (s *TokenStore) HasRefreshToken() bool {
	return s.RefreshToken() != ""
}

func (s *TokenStore) SetAccessToken(token string) error {
	if err := s.kv.SetItem(storage.KeyAccessToken, token); err != nil {
		return fmt.Errorf("storing access token: %w", err)
	}
	return nil
}

// SetTokens stores a freshly issued pair.
func (s *TokenStore) SetTokens(access, refresh string) error {
	if err := s.SetAccessToken(access); err != nil {
		return err
	}
	if err := s.kv.SetItem(storage.KeyRefreshToken, refresh); err != nil {
		return fmt.Errorf("storing refresh token: %w", err)
	}
	return nil
}

// ClearTokens removes both slots.
func (s *TokenStore) ClearTokens() error {
	aErr := s.kv.RemoveItem(storage.KeyAccessToken)
	rErr := s.kv.RemoveItem(storage.KeyRefreshToken)
	if aErr != nil {
		return fmt.Errorf("clearing access token: %w", aErr)
	}
	if rErr != nil {
		return fmt.Errorf("clearing refresh token: %w", rErr)
	}
	return nil
}

// TokenType decodes the payload segment of token and reports its token_type
// claim. ok is false when the token is not a three-segment JWT or the payload
// does not decode; callers treat such tokens as valid.
func (s *TokenStore) TokenType(token string) (typ string, ok bool) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return "", false
	}
	raw, err := s.parser.DecodeSegment(parts[1])
	if err != nil {
		return "", false
	}
	var claims jwt.MapClaims
	if err := json.Unmarshal(raw, &claims); err != nil {
		return "", false
	}
	typ, _ = claims["token_type"].(string)
	return typ, true
}

func (s *TokenStore) read(key string) string {
	v, ok, err := s.kv.GetItem(key)
	if err != nil {
		s.logger.Warn("token slot unreadable, treating as absent", "key", key, "error", err)
		return ""
	}
	if !ok {
		return ""
	}
	return v
}
