//go:build darwin

package config

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

const defaultsDomain = "app.hoshidori.cli"

func defaultDataDir() string {
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, "Library", "Application Support", "hoshidori")
	}
	return "hoshidori-data"
}

// darwinBackend stores settings in the user's defaults database under one
// domain, so `defaults read app.hoshidori.cli` shows everything set.
type darwinBackend struct {
	domain string
}

func newPlatformBackend() ConfigBackend {
	return &darwinBackend{domain: defaultsDomain}
}

// errNoSuchKey is reported by defaults as exit status 1.
var errNoSuchKey = errors.New("no such defaults key")

func (b *darwinBackend) defaults(verb, key string, args ...string) (string, error) {
	argv := append([]string{verb, b.domain, key}, args...)
	out, err := exec.Command("defaults", argv...).CombinedOutput()
	s := strings.TrimSpace(string(out))
	if err == nil {
		return s, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 && verb != "write" {
		return "", errNoSuchKey
	}
	return "", fmt.Errorf("defaults %s %s: %w: %s", verb, key, err, s)
}

func (b *darwinBackend) GetString(key string) (string, bool, error) {
	s, err := b.defaults("read", key)
	if errors.Is(err, errNoSuchKey) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return s, true, nil
}

func (b *darwinBackend) GetInt(key string) (int, bool, error) {
	s, ok, err := b.GetString(key)
	if !ok || err != nil {
		return 0, ok, err
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, true, fmt.Errorf("invalid integer for %s: %w", key, err)
	}
	return i, true, nil
}

func (b *darwinBackend) SetString(key, val string) error {
	_, err := b.defaults("write", key, "-string", val)
	return err
}

func (b *darwinBackend) SetInt(key string, val int) error {
	_, err := b.defaults("write", key, "-int", strconv.Itoa(val))
	return err
}

// Delete removes key; a key that was never set is not an error.
func (b *darwinBackend) Delete(key string) error {
	_, err := b.defaults("delete", key)
	if errors.Is(err, errNoSuchKey) {
		return nil
	}
	return err
}
