package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/hoshidori/hoshidori/internal/apiclient"
	"github.com/hoshidori/hoshidori/internal/locallog"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

// stderr receives status lines and prompts.
var stderr io.Writer = os.Stderr

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(stderr, colorize(colorGreen, "✓ "+msg))
}

func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(stderr, colorize(colorRed, "✗ "+msg))
}

func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(stderr, colorize(colorYellow, "⚠ "+msg))
}

func printStatus(label string, format string, args ...any) {
	val := fmt.Sprintf(format, args...)
	l := colorize(colorBold, label+":")
	fmt.Fprintf(stderr, "  %s %s\n", l, val)
}

func printStep(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(stderr, colorize(colorCyan, "→ "+msg))
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// logRow is one line of "logs list", shared by local and server logs.
type logRow struct {
	ID      string
	Watched string
	Work    string
	Seat    string
	Rating  string
}

func serverRow(l apiclient.Log) logRow {
	r := logRow{ID: strconv.FormatInt(l.ID, 10), Watched: l.WatchedDate, Seat: l.Seat}
	if l.Work != nil {
		r.Work = l.Work.Title
	}
	if l.Rating != nil {
		r.Rating = strconv.FormatFloat(float64(*l.Rating), 'f', 1, 64)
	}
	return r
}

func localRow(rec locallog.Record) logRow {
	r := logRow{ID: string(rec.ID), Seat: rec.Seat, Work: localWorkTitle(rec)}
	if w := rec.Watched(); w != nil {
		r.Watched = *w
	}
	if rec.Rating != nil {
		r.Rating = strconv.FormatFloat(*rec.Rating, 'f', 1, 64)
	}
	return r
}

// localWorkTitle prefers the nested work's title and falls back to its id.
func localWorkTitle(rec locallog.Record) string {
	var w struct {
		Title string `json:"title"`
	}
	if len(rec.Work) > 0 && json.Unmarshal(rec.Work, &w) == nil && w.Title != "" {
		return w.Title
	}
	if id := rec.WorkRef(); id != "" {
		return "work #" + string(id)
	}
	return ""
}

func printLogRows(w io.Writer, rows []logRow) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tWATCHED\tWORK\tSEAT\tRATING")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.ID, orDash(r.Watched), orDash(r.Work), orDash(r.Seat), orDash(r.Rating))
	}
	return tw.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
