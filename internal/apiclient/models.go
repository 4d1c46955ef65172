package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Decimal accepts both JSON numbers and the quoted decimals DRF emits.
type Decimal float64

func (d *Decimal) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*d = 0
		return nil
	}
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("decimal %q: %w", b, err)
	}
	*d = Decimal(f)
	return nil
}

type Work struct {
	ID        int64    `json:"id"`
	Title     string   `json:"title"`
	Slug      string   `json:"slug"`
	Status    string   `json:"status"`
	Tags      []string `json:"tags"`
	AvgRating *Decimal `json:"avg_rating"`
}

type Run struct {
	ID        int64   `json:"id"`
	Label     string  `json:"label"`
	Area      string  `json:"area"`
	StartDate *string `json:"start_date"`
	EndDate   *string `json:"end_date"`
}

// Schedule is the GET /api/works/{id}/schedule/ payload.
type Schedule struct {
	WorkID int64  `json:"work_id"`
	Title  string `json:"title"`
	Runs   []Run  `json:"runs"`
}

// Log is a server-side viewing log. The server renames watched_at to
// watchedDate on output.
type Log struct {
	ID          int64    `json:"id"`
	Work        *Work    `json:"work"`
	Run         *int64   `json:"run"`
	WatchedDate string   `json:"watchedDate"`
	Seat        string   `json:"seat"`
	Memo        string   `json:"memo"`
	Rating      *Decimal `json:"rating"`
	Tags        []string `json:"tags"`
	CreatedAt   string   `json:"created_at"`
}

// LogInput is the POST /api/logs/ body.
type LogInput struct {
	WorkID    *int64   `json:"work_id,omitempty"`
	Run       *int64   `json:"run"`
	Seat      string   `json:"seat"`
	Memo      string   `json:"memo"`
	Rating    *float64 `json:"rating"`
	WatchedAt *string  `json:"watched_at,omitempty"`
	Tags      []string `json:"tags"`
}

// User is the GET /api/auth/user/ payload. Fields keeps every field the
// server returned.
type User struct {
	ID        int64          `json:"id"`
	Username  string         `json:"username"`
	Email     string         `json:"email"`
	FirstName string         `json:"first_name"`
	Fields    map[string]any `json:"-"`
}

func (u *User) UnmarshalJSON(b []byte) error {
	type plain User
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	if err := json.Unmarshal(b, &p.Fields); err != nil {
		return err
	}
	*u = User(p)
	return nil
}

// TokenPair is the POST /api/auth/token/ payload.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}
