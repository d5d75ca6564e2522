// Package report renders a run's Aggregate as plain text or JSON.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Sternrassler/spycheck/pkg/fanout"
)

// NoMatchesLine is printed in plain mode when nothing was found.
const NoMatchesLine = "No servers matched, you may not be in the dataset"

// Format selects the output encoding.
type Format string

const (
	// FormatPlain is simple output in human readable format.
	FormatPlain Format = "plain"

	// FormatJSON is complete output in JSON format.
	FormatJSON Format = "json"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatPlain:
		return FormatPlain, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want plain or json)", s)
	}
}

// Record is one JSON output element.
type Record struct {
	GuildID     string          `json:"guild_id"`
	GuildName   string          `json:"guild_name"`
	APIResponse json.RawMessage `json:"api_response"`
}

// Render writes agg to w in the given format. Only findings whose payload
// is not the "absent" value are reported, in the aggregate's order.
func Render(w io.Writer, format Format, agg fanout.Aggregate) error {
	switch format {
	case FormatPlain:
		return RenderPlain(w, agg)
	case FormatJSON:
		return RenderJSON(w, agg)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// RenderPlain writes one "is compromised!" line per present finding, or
// NoMatchesLine when there are none.
func RenderPlain(w io.Writer, agg fanout.Aggregate) error {
	present := agg.Present()
	if len(present) == 0 {
		_, err := fmt.Fprintln(w, NoMatchesLine)
		return err
	}

	for _, f := range present {
		if _, err := fmt.Fprintf(w, "%s (ID: %s) is compromised!\n", f.Name, f.ID); err != nil {
			return err
		}
	}
	return nil
}

// RenderJSON writes a pretty-printed array of present findings.
func RenderJSON(w io.Writer, agg fanout.Aggregate) error {
	present := agg.Present()
	records := make([]Record, 0, len(present))
	for _, f := range present {
		records = append(records, Record{
			GuildID:     f.ID,
			GuildName:   f.Name,
			APIResponse: f.Payload,
		})
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	data = append(data, '\n')

	_, err = w.Write(data)
	return err
}

// WriteErrors writes the failure count line reported on every run.
func WriteErrors(w io.Writer, failures int) error {
	_, err := fmt.Fprintf(w, "Errors: %d\n", failures)
	return err
}

// OpenOutput returns the report sink: stdout when path is empty, otherwise
// the file at path, created if needed and truncated. Closing the stdout sink
// is a no-op.
func OpenOutput(path string, stdout io.Writer) (io.WriteCloser, error) {
	if path == "" {
		return nopCloser{stdout}, nil
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("couldn't open %s: %w", path, err)
	}
	return f, nil
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
