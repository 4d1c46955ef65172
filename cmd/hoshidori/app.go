package main

import (
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/hoshidori/hoshidori/internal/apiclient"
	"github.com/hoshidori/hoshidori/internal/auth"
	"github.com/hoshidori/hoshidori/internal/config"
	"github.com/hoshidori/hoshidori/internal/localsettings"
	"github.com/hoshidori/hoshidori/internal/locallog"
	"github.com/hoshidori/hoshidori/internal/session"
	"github.com/hoshidori/hoshidori/internal/storage"
	"github.com/hoshidori/hoshidori/internal/syncer"
)

// app wires every component one command invocation needs. The session is
// left uninitialized; commands that need the profile call Init.
type app struct {
	cfg      config.Config
	store    *storage.Store
	tokens   *auth.TokenStore
	api      *apiclient.Client
	logs     *locallog.Store
	settings *localsettings.Store
	session  *session.Session
}

var newApp = func() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return openApp(cfg)
}

func openApp(cfg config.Config) (*app, error) {
	setupLogging(cfg.Log.Level)

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	tokens := auth.NewTokenStore(store)
	client := apiclient.New(apiclient.Config{
		BaseURL:    cfg.API.BaseURL,
		HTTPClient: &http.Client{Timeout: cfg.API.Timeout()},
		TTLs: &apiclient.TTLs{
			Works:    seconds(cfg.Cache.WorksTTLSeconds),
			Schedule: seconds(cfg.Cache.ScheduleTTLSeconds),
			Logs:     seconds(cfg.Cache.LogsTTLSeconds),
		},
	}, tokens)
	settings := localsettings.New(store)

	return &app{
		cfg:      cfg,
		store:    store,
		tokens:   tokens,
		api:      client,
		logs:     locallog.New(store, tokens),
		settings: settings,
		session:  session.New(tokens, client, settings),
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// syncer builds a syncer from config; purge forces PurgeSynced on.
func (a *app) syncer(purge bool) *syncer.Syncer {
	opts := syncer.Options{
		PurgeSynced: purge || a.cfg.Sync.Purge,
		Concurrency: a.cfg.Sync.Concurrency,
	}
	if a.cfg.Sync.RatePerSecond > 0 {
		opts.RateLimit = rate.Limit(a.cfg.Sync.RatePerSecond)
	}
	return syncer.New(a.api, a.logs, a.settings, opts)
}

// hasLocalData reports whether a guest left anything worth syncing.
func (a *app) hasLocalData() bool {
	return len(a.logs.List()) > 0 || a.settings.DisplayName() != "" || a.settings.ProfileImageURL() != ""
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
