package locallog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// timeLayout matches JavaScript's Date.toISOString.
const timeLayout = "2006-01-02T15:04:05.000Z"

// ID is a record or reference id. Ids are compared by their string form; a
// canonical decimal id is written back as a JSON number and an empty id as
// null. Anything else, such as "0012" or "+7", stays a JSON string.
type ID string

func (id ID) MarshalJSON() ([]byte, error) {
	if id == "" {
		return []byte("null"), nil
	}
	if id.canonical() {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id ID) canonical() bool {
	n, err := strconv.ParseInt(string(id), 10, 64)
	return err == nil && strconv.FormatInt(n, 10) == string(id)
}

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || string(b) == "null":
		*id = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("id %s: %w", b, err)
		}
		*id = ID(n.String())
	}
	return nil
}

func (id ID) String() string { return string(id) }

// Int64 parses a numeric id.
func (id ID) Int64() (int64, bool) {
	n, err := strconv.ParseInt(string(id), 10, 64)
	return n, err == nil
}

// Record is one locally stored viewing log. The field names match what the
// web client persists, including both names for the watched timestamp.
type Record struct {
	ID          ID              `json:"id"`
	WorkID      ID              `json:"work_id"`
	Work        json.RawMessage `json:"work"`
	Run         ID              `json:"run"`
	Seat        string          `json:"seat"`
	Memo        string          `json:"memo"`
	Rating      *float64        `json:"rating"`
	Tags        []string        `json:"tags"`
	WatchedAt   *string         `json:"watched_at"`
	WatchedDate *string         `json:"watchedDate"`
	CreatedAt   string          `json:"created_at"`
	UpdatedAt   string          `json:"updated_at"`
}

// UnmarshalJSON accepts a rating written as a number, a quoted decimal or an
// empty string. Other fields decode strictly.
func (r *Record) UnmarshalJSON(b []byte) error {
	type plain Record
	var aux struct {
		plain
		Rating json.RawMessage `json:"rating"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	rating, err := parseRating(aux.Rating)
	if err != nil {
		return err
	}
	*r = Record(aux.plain)
	r.Rating = rating
	return nil
}

func parseRating(raw json.RawMessage) (*float64, error) {
	t := bytes.Trim(bytes.TrimSpace(raw), `"`)
	if len(t) == 0 || string(t) == "null" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(string(t), 64)
	if err != nil {
		return nil, fmt.Errorf("rating %s: %w", raw, err)
	}
	return &f, nil
}

// WorkRef returns the referenced work id, preferring work_id over the nested
// work object's id.
func (r Record) WorkRef() ID {
	if r.WorkID != "" {
		return r.WorkID
	}
	var w struct {
		ID ID `json:"id"`
	}
	if len(r.Work) > 0 && json.Unmarshal(r.Work, &w) == nil {
		return w.ID
	}
	return ""
}

// Watched returns the watched timestamp from whichever alias is set.
func (r Record) Watched() *string {
	if r.WatchedAt != nil && *r.WatchedAt != "" {
		return r.WatchedAt
	}
	if r.WatchedDate != nil && *r.WatchedDate != "" {
		return r.WatchedDate
	}
	return nil
}

// Payload is the input to Create and Update. Nil fields are absent.
type Payload struct {
	ID          *ID             `json:"id,omitempty"`
	WorkID      *ID             `json:"work_id,omitempty"`
	WorkIDCamel *ID             `json:"workId,omitempty"`
	Work        json.RawMessage `json:"work,omitempty"`
	Run         *ID             `json:"run,omitempty"`
	Seat        *string         `json:"seat,omitempty"`
	Memo        *string         `json:"memo,omitempty"`
	Rating      *float64        `json:"rating,omitempty"`
	Tags        []string        `json:"tags,omitempty"`
	WatchedAt   *string         `json:"watched_at,omitempty"`
	WatchedDate *string         `json:"watchedDate,omitempty"`
	CreatedAt   *string         `json:"created_at,omitempty"`
	UpdatedAt   *string         `json:"updated_at,omitempty"`
}

func (r Record) payload() Payload {
	p := Payload{
		ID:          ptr(r.ID),
		WorkID:      ptr(r.WorkID),
		Work:        r.Work,
		Run:         ptr(r.Run),
		Seat:        ptr(r.Seat),
		Memo:        ptr(r.Memo),
		Rating:      r.Rating,
		Tags:        r.Tags,
		WatchedAt:   r.WatchedAt,
		WatchedDate: r.WatchedDate,
		CreatedAt:   ptr(r.CreatedAt),
		UpdatedAt:   ptr(r.UpdatedAt),
	}
	return p
}

// overlay copies every present field of q over p. The work object is only
// replaced when q carries one. Setting either alias of a paired field sets both.
func (p Payload) overlay(q Payload) Payload {
	if q.WorkID != nil {
		p.WorkID, p.WorkIDCamel = q.WorkID, nil
	} else if q.WorkIDCamel != nil {
		p.WorkID, p.WorkIDCamel = q.WorkIDCamel, nil
	}
	if hasJSON(q.Work) {
		p.Work = q.Work
	}
	if q.Run != nil {
		p.Run = q.Run
	}
	if q.Seat != nil {
		p.Seat = q.Seat
	}
	if q.Memo != nil {
		p.Memo = q.Memo
	}
	if q.Rating != nil {
		p.Rating = q.Rating
	}
	if q.Tags != nil {
		p.Tags = q.Tags
	}
	if w := firstSet(q.WatchedAt, q.WatchedDate); w != nil {
		p.WatchedAt, p.WatchedDate = w, w
	}
	if q.CreatedAt != nil {
		p.CreatedAt = q.CreatedAt
	}
	if q.UpdatedAt != nil {
		p.UpdatedAt = q.UpdatedAt
	}
	return p
}

// normalize fills every optional field so a stored record never has holes.
// newID is only called when p has no id.
func normalize(p Payload, now time.Time, newID func() ID) Record {
	stamp := now.UTC().Format(timeLayout)

	r := Record{
		Seat:      deref(p.Seat),
		Memo:      deref(p.Memo),
		Rating:    p.Rating,
		CreatedAt: orDefault(p.CreatedAt, stamp),
		UpdatedAt: orDefault(p.UpdatedAt, stamp),
	}

	if p.ID != nil && *p.ID != "" {
		r.ID = *p.ID
	} else {
		r.ID = newID()
	}
	if p.WorkID != nil && *p.WorkID != "" {
		r.WorkID = *p.WorkID
	} else if p.WorkIDCamel != nil {
		r.WorkID = *p.WorkIDCamel
	}
	if p.Run != nil {
		r.Run = *p.Run
	}
	if hasJSON(p.Work) {
		r.Work = p.Work
	}

	r.Tags = p.Tags
	if len(r.Tags) == 0 {
		r.Tags = workTags(r.Work)
	}
	if r.Tags == nil {
		r.Tags = []string{}
	}

	if w := firstSet(p.WatchedAt, p.WatchedDate); w != nil {
		v := *w
		r.WatchedAt, r.WatchedDate = &v, &v
	}
	return r
}

// workTags extracts tag names from a nested work. Entries may be plain
// strings or {"name": ...} objects.
func workTags(work json.RawMessage) []string {
	if !hasJSON(work) {
		return nil
	}
	var w struct {
		Tags []json.RawMessage `json:"tags"`
	}
	if err := json.Unmarshal(work, &w); err != nil || w.Tags == nil {
		return nil
	}
	tags := make([]string, 0, len(w.Tags))
	for _, raw := range w.Tags {
		var s string
		if json.Unmarshal(raw, &s) == nil {
			tags = append(tags, s)
			continue
		}
		var obj struct {
			Name string `json:"name"`
		}
		_ = json.Unmarshal(raw, &obj)
		tags = append(tags, obj.Name)
	}
	return tags
}

func hasJSON(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) > 0 && string(t) != "null"
}

func firstSet(vals ...*string) *string {
	for _, v := range vals {
		if v != nil && *v != "" {
			return v
		}
	}
	return nil
}

func ptr[T any](v T) *T { return &v }

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func orDefault(s *string, def string) string {
	if s == nil || *s == "" {
		return def
	}
	return *s
}
