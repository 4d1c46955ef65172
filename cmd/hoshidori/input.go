package main

import (
	"strconv"
	"time"

	validation "github.com/jellydator/validation"
	"github.com/spf13/cobra"

	"github.com/hoshidori/hoshidori/internal/apiclient"
	"github.com/hoshidori/hoshidori/internal/locallog"
)

// logFlags are the log fields shared by "logs add" and "logs edit". The json
// tags name each field after its flag in validation errors.
type logFlags struct {
	WorkID  string   `json:"work"`
	Run     string   `json:"run"`
	Seat    string   `json:"seat"`
	Memo    string   `json:"memo"`
	Rating  float64  `json:"rating"`
	Watched string   `json:"watched"`
	Tags    []string `json:"tags"`

	cmd *cobra.Command
}

func bindLogFlags(cmd *cobra.Command) *logFlags {
	f := &logFlags{cmd: cmd}
	fl := cmd.Flags()
	fl.StringVar(&f.WorkID, "work", "", "work id")
	fl.StringVar(&f.Run, "run", "", "run id")
	fl.StringVar(&f.Seat, "seat", "", "seat label")
	fl.StringVar(&f.Memo, "memo", "", "free-text memo")
	fl.Float64Var(&f.Rating, "rating", 0, "rating from 1 to 5")
	fl.StringVar(&f.Watched, "watched", "", "when you watched it (YYYY-MM-DD or RFC 3339)")
	fl.StringSliceVar(&f.Tags, "tags", nil, "comma-separated tags")
	return f
}

func (f *logFlags) changed(name string) bool {
	return f.cmd.Flags().Changed(name)
}

// validate checks the flags; requireWork is set when creating.
func (f *logFlags) validate(requireWork bool) error {
	return validation.ValidateStruct(f,
		validation.Field(&f.WorkID, validation.When(requireWork, validation.Required), validation.By(numericID)),
		validation.Field(&f.Run, validation.By(numericID)),
		validation.Field(&f.Seat, validation.Length(0, 64)),
		validation.Field(&f.Rating, validation.When(f.changed("rating"),
			validation.Required, validation.Min(1.0), validation.Max(5.0))),
		validation.Field(&f.Watched, validation.By(watchedTime)),
	)
}

// payload maps the changed flags onto a local log payload.
func (f *logFlags) payload() locallog.Payload {
	var p locallog.Payload
	if f.changed("work") {
		p.WorkID = ptr(locallog.ID(f.WorkID))
	}
	if f.changed("run") {
		p.Run = ptr(locallog.ID(f.Run))
	}
	if f.changed("seat") {
		p.Seat = &f.Seat
	}
	if f.changed("memo") {
		p.Memo = &f.Memo
	}
	if f.changed("rating") {
		p.Rating = &f.Rating
	}
	if f.changed("watched") {
		p.WatchedAt = &f.Watched
	}
	if f.changed("tags") {
		p.Tags = f.Tags
	}
	return p
}

// logInput builds a server create payload. Ids were validated.
func (f *logFlags) logInput() apiclient.LogInput {
	in := apiclient.LogInput{Seat: f.Seat, Memo: f.Memo, Tags: f.Tags}
	if n, err := strconv.ParseInt(f.WorkID, 10, 64); err == nil {
		in.WorkID = &n
	}
	if n, err := strconv.ParseInt(f.Run, 10, 64); err == nil {
		in.Run = &n
	}
	if f.changed("rating") {
		in.Rating = &f.Rating
	}
	if f.Watched != "" {
		in.WatchedAt = &f.Watched
	}
	return in
}

// updateFields lists the changed flags under their server field names.
func (f *logFlags) updateFields() map[string]any {
	fields := map[string]any{}
	if f.changed("work") {
		n, _ := strconv.ParseInt(f.WorkID, 10, 64)
		fields["work_id"] = n
	}
	if f.changed("run") {
		if n, err := strconv.ParseInt(f.Run, 10, 64); err == nil {
			fields["run"] = n
		} else {
			fields["run"] = nil
		}
	}
	if f.changed("seat") {
		fields["seat"] = f.Seat
	}
	if f.changed("memo") {
		fields["memo"] = f.Memo
	}
	if f.changed("rating") {
		fields["rating"] = f.Rating
	}
	if f.changed("watched") {
		fields["watched_at"] = f.Watched
	}
	if f.changed("tags") {
		tags := f.Tags
		if tags == nil {
			tags = []string{}
		}
		fields["tags"] = tags
	}
	return fields
}

func numericID(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err != nil || n <= 0 || strconv.FormatInt(n, 10) != s {
		return validation.NewError("validation_numeric_id", "must be a positive numeric id")
	}
	return nil
}

func watchedTime(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if _, err := time.Parse(time.DateOnly, s); err == nil {
		return nil
	}
	if _, err := time.Parse(time.RFC3339, s); err == nil {
		return nil
	}
	return validation.NewError("validation_watched_time", "must be YYYY-MM-DD or an RFC 3339 timestamp")
}

func ptr[T any](v T) *T { return &v }
