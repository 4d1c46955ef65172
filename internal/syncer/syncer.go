// Package syncer pushes guest data to the server after sign-in.
//
// Every local log is sent as its own create call. Calls are independent and
// best-effort: a failed record is logged and counted, never fatal. The guest
// display name is sent as a profile update; the profile image reference is
// only logged because the API has no way to accept it yet.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/hoshidori/hoshidori/internal/apiclient"
	"github.com/hoshidori/hoshidori/internal/locallog"
)

// API is the server surface the syncer calls.
type API interface {
	CreateLog(ctx context.Context, in apiclient.LogInput) (apiclient.Log, error)
	UpdateProfile(ctx context.Context, fields map[string]string) (*apiclient.Result, error)
}

// Logs is the local log store.
type Logs interface {
	List() []locallog.Record
	DeleteMany(ids []string) error
}

// Settings is the local guest profile.
type Settings interface {
	DisplayName() string
	ProfileImageURL() string
	Clear() error
}

// Options tune a sync run. The zero value sends everything at once and keeps
// local data afterwards, so signing in again re-sends the same records.
type Options struct {
	// PurgeSynced deletes each record the server accepted and clears the
	// local profile once it has been sent.
	PurgeSynced bool
	// Concurrency caps in-flight create calls; zero means no cap.
	Concurrency int
	// RateLimit paces create calls; zero means unlimited.
	RateLimit rate.Limit
}

// Report summarizes one run.
type Report struct {
	Attempted     int
	Synced        int
	Failed        int
	ProfileSynced bool
	Purged        int
}

type Syncer struct {
	api      API
	logs     Logs
	settings Settings
	opts     Options
	logger   *slog.Logger
}

func New(api API, logs Logs, settings Settings, opts Options) *Syncer {
	return &Syncer{
		api:      api,
		logs:     logs,
		settings: settings,
		opts:     opts,
		logger:   slog.Default(),
	}
}

// Sync runs SyncReport and reports only whether the run as a whole completed.
// Individual record failures do not make it false.
func (s *Syncer) Sync(ctx context.Context) bool {
	_, err := s.SyncReport(ctx)
	if err != nil {
		s.logger.Error("sync failed", "error", err)
		return false
	}
	return true
}

// SyncReport pushes local logs and the local profile. The returned error is
// non-nil only when the run could not proceed at all or, with PurgeSynced,
// when synced records could not be removed.
func (s *Syncer) SyncReport(ctx context.Context) (Report, error) {
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}

	records := s.logs.List()
	rep := Report{Attempted: len(records)}

	synced := s.pushLogs(ctx, records)
	var syncedIDs []string
	for i, ok := range synced {
		if ok {
			syncedIDs = append(syncedIDs, string(records[i].ID))
		}
	}
	rep.Synced = len(syncedIDs)
	rep.Failed = rep.Attempted - rep.Synced
	s.logger.Info("local logs synced", "attempted", rep.Attempted, "synced", rep.Synced, "failed", rep.Failed)

	rep.ProfileSynced = s.pushProfile(ctx)

	if !s.opts.PurgeSynced {
		return rep, nil
	}

	var errs []error
	if err := s.logs.DeleteMany(syncedIDs); err != nil {
		errs = append(errs, fmt.Errorf("purging synced logs: %w", err))
	} else {
		rep.Purged = len(syncedIDs)
	}
	if rep.ProfileSynced {
		if err := s.settings.Clear(); err != nil {
			errs = append(errs, fmt.Errorf("clearing synced settings: %w", err))
		}
	}
	return rep, errors.Join(errs...)
}

// pushLogs sends one create call per record and reports which succeeded.
func (s *Syncer) pushLogs(ctx context.Context, records []locallog.Record) []bool {
	synced := make([]bool, len(records))

	var limiter *rate.Limiter
	if s.opts.RateLimit > 0 {
		limiter = rate.NewLimiter(s.opts.RateLimit, 1)
	}

	var g errgroup.Group
	if s.opts.Concurrency > 0 {
		g.SetLimit(s.opts.Concurrency)
	}
	for i, rec := range records {
		g.Go(func() error {
			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					s.logger.Warn("failed to sync log", "id", rec.ID, "error", err)
					return nil
				}
			}
			if _, err := s.api.CreateLog(ctx, ToLogInput(rec)); err != nil {
				s.logger.Warn("failed to sync log", "id", rec.ID, "error", err)
				return nil
			}
			synced[i] = true
			return nil
		})
	}
	_ = g.Wait()
	return synced
}

// pushProfile sends the guest display name. It reports whether an update was
// sent and accepted.
func (s *Syncer) pushProfile(ctx context.Context) bool {
	name := s.settings.DisplayName()
	image := s.settings.ProfileImageURL()
	if name == "" && image == "" {
		return false
	}

	fields := map[string]string{}
	if name != "" {
		fields["first_name"] = name
	}
	if image != "" {
		s.logger.Info("profile image reference not uploaded", "url", image)
	}

	if _, err := s.api.UpdateProfile(ctx, fields); err != nil {
		s.logger.Warn("failed to sync profile", "error", err)
		return false
	}
	s.logger.Info("profile synced")
	return true
}

// ToLogInput maps a local record to a server create payload.
func ToLogInput(rec locallog.Record) apiclient.LogInput {
	in := apiclient.LogInput{
		Seat:      rec.Seat,
		Memo:      rec.Memo,
		Rating:    rec.Rating,
		WatchedAt: rec.Watched(),
		Tags:      rec.Tags,
	}
	if in.Tags == nil {
		in.Tags = []string{}
	}
	if n, ok := rec.WorkRef().Int64(); ok {
		in.WorkID = &n
	}
	if n, ok := rec.Run.Int64(); ok {
		in.Run = &n
	}
	return in
}
