// Package calendar provides iCal feed parsing and generation for
// availability import and export.
package calendar

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tour-availability/backend/internal/availability"
)

// Parser fetches and parses iCal/ICS calendar feeds into busy intervals.
type Parser struct {
	httpClient *http.Client

	// defaultDuration is assigned to events that carry a DTSTART but no
	// recognizable DTEND.
	defaultDuration time.Duration
}

// NewParser creates an iCal parser. Events without an end date are given
// defaultDuration; fetches are bounded by timeout.
func NewParser(timeout, defaultDuration time.Duration) *Parser {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if defaultDuration <= 0 {
		defaultDuration = time.Hour
	}
	return &Parser{
		httpClient:      &http.Client{Timeout: timeout},
		defaultDuration: defaultDuration,
	}
}

// FetchAndParse downloads the feed at feedURL and parses it into busy
// intervals tagged with sourceID. Unreachable or malformed feeds return an
// error; an empty feed returns an empty slice, so callers can tell "no
// events" apart from "could not sync".
func (p *Parser) FetchAndParse(ctx context.Context, sourceID, feedURL string) ([]availability.BusyInterval, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building feed request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	return p.Parse(sourceID, resp.Body)
}

// rawEvent accumulates one VEVENT's fields during parsing.
type rawEvent struct {
	uid     string
	summary string
	start   time.Time
	end     time.Time
}

// Parse reads iCal data from r into busy intervals tagged with sourceID.
// Events without a parseable DTSTART are skipped; events without a DTEND
// get the parser's default duration.
func (p *Parser) Parse(sourceID string, r io.Reader) ([]availability.BusyInterval, error) {
	var intervals []availability.BusyInterval
	var current *rawEvent
	var currentField string
	var pendingValue strings.Builder

	flushField := func() {
		if currentField != "" && current != nil {
			setEventField(current, currentField, pendingValue.String())
		}
		currentField = ""
		pendingValue.Reset()
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")

		// Folded lines start with a space or tab and continue the
		// previous property value.
		if strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t") {
			if currentField != "" {
				pendingValue.WriteString(line[1:])
			}
			continue
		}

		flushField()

		colonIdx := strings.Index(line, ":")
		if colonIdx == -1 {
			continue
		}

		field := line[:colonIdx]
		value := line[colonIdx+1:]

		// Strip property parameters (e.g. DTSTART;VALUE=DATE:20261215).
		if semicolonIdx := strings.Index(field, ";"); semicolonIdx != -1 {
			field = field[:semicolonIdx]
		}

		switch field {
		case "BEGIN":
			if value == "VEVENT" {
				current = &rawEvent{}
			}
		case "END":
			if value == "VEVENT" && current != nil {
				if iv, ok := p.finishEvent(sourceID, current); ok {
					intervals = append(intervals, iv)
				}
				current = nil
			}
		case "UID", "SUMMARY", "DTSTART", "DTEND":
			if current != nil {
				currentField = field
				pendingValue.WriteString(value)
			}
		}
	}
	flushField()

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading feed: %w", err)
	}

	return intervals, nil
}

// finishEvent converts an accumulated VEVENT into a busy interval. Events
// with no start do not resolve; events with no end get the default duration.
func (p *Parser) finishEvent(sourceID string, ev *rawEvent) (availability.BusyInterval, bool) {
	if ev.start.IsZero() {
		return availability.BusyInterval{}, false
	}

	end := ev.end
	if end.IsZero() || !end.After(ev.start) {
		end = ev.start.Add(p.defaultDuration)
	}

	return availability.BusyInterval{
		SourceID:    sourceID,
		ExternalUID: ev.uid,
		Start:       ev.start,
		End:         end,
		Label:       ev.summary,
	}, true
}

func setEventField(ev *rawEvent, field, value string) {
	switch field {
	case "UID":
		ev.uid = value
	case "SUMMARY":
		ev.summary = unescapeText(value)
	case "DTSTART":
		ev.start = parseDateTime(value)
	case "DTEND":
		ev.end = parseDateTime(value)
	}
}

// unescapeText reverses the iCal text escape sequences.
func unescapeText(value string) string {
	value = strings.ReplaceAll(value, "\\n", "\n")
	value = strings.ReplaceAll(value, "\\N", "\n")
	value = strings.ReplaceAll(value, "\\,", ",")
	value = strings.ReplaceAll(value, "\\;", ";")
	value = strings.ReplaceAll(value, "\\\\", "\\")
	return value
}

// parseDateTime parses an iCal date or date-time value. Returns the zero
// time when no known format matches.
func parseDateTime(value string) time.Time {
	formats := []string{
		"20060102T150405Z",     // UTC datetime
		"20060102T150405",      // floating datetime
		"20060102",             // date only
		"2006-01-02T15:04:05Z", // ISO 8601 with dashes
		"2006-01-02",           // ISO 8601 date
	}

	for _, format := range formats {
		if t, err := time.Parse(format, value); err == nil {
			return t.UTC()
		}
	}

	return time.Time{}
}

// FilterFuture returns only intervals that have not ended by now.
func FilterFuture(intervals []availability.BusyInterval, now time.Time) []availability.BusyInterval {
	var future []availability.BusyInterval
	for _, iv := range intervals {
		if iv.End.After(now) {
			future = append(future, iv)
		}
	}
	return future
}
