package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/deadlog/deadlog-go/pkg/deadlog/event"
)

// ValidFormats lists all valid output formats.
var ValidFormats = map[string]bool{
	"jsonl":  true,
	"pretty": true,
}

// OutputEvent writes an event in the specified format to the writer.
func OutputEvent(format string, ev event.Event, out io.Writer) error {
	switch format {
	case "jsonl":
		return OutputJSON(ev, out)
	case "pretty":
		return OutputPretty(ev, out)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// OutputJSON writes an event as JSON Lines format.
func OutputJSON(ev event.Event, out io.Writer) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}

// OutputPretty writes an event in human-readable format.
func OutputPretty(ev event.Event, out io.Writer) error {
	ts := ev.Timestamp.Format("15:04:05")

	var err error
	switch ev.Type {
	case event.QueueJoin:
		_, err = fmt.Fprintf(out, "[%s] ~ %s queued (%s)\n", ts, ev.PlayerName, ev.PlayerID)
	case event.PlayerJoin:
		_, err = fmt.Fprintf(out, "[%s] + %s joined\n", ts, ev.PlayerID)
	case event.Disconnect:
		_, err = fmt.Fprintf(out, "[%s] - %s disconnected\n", ts, ev.PlayerID)
	case event.MissionReady:
		_, err = fmt.Fprintf(out, "[%s] > mission ready: %s\n", ts, ev.MissionID)
	case event.MissionInitial:
		_, err = fmt.Fprintf(out, "[%s] < mission reset: %s\n", ts, ev.MissionID)
	case event.AirdropFlying:
		_, err = fmt.Fprintf(out, "[%s] > airdrop inbound\n", ts)
	default:
		// Custom events carry their payload in Data.
		if len(ev.Data) > 0 {
			_, err = fmt.Fprintf(out, "[%s] * %s: %s\n", ts, ev.Type, formatData(ev.Data))
		} else {
			_, err = fmt.Fprintf(out, "[%s] * %s\n", ts, ev.Type)
		}
	}

	return err
}

// formatData formats a map as sorted key=value pairs.
func formatData(data map[string]string) string {
	if len(data) == 0 {
		return ""
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(data))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", quoteIfNeeded(k), quoteIfNeeded(data[k])))
	}
	return strings.Join(parts, " ")
}

// quoteIfNeeded quotes a value if it contains whitespace, quoting
// characters, or control characters. Returns the value unchanged
// otherwise.
func quoteIfNeeded(v string) string {
	if v == "" {
		return `""`
	}

	needsQuote := false
	for _, c := range v {
		if c == ' ' || c == '=' || c == '"' || c == '\\' || c < 0x20 || c == 0x7F {
			needsQuote = true
			break
		}
	}
	if !needsQuote {
		return v
	}

	var sb strings.Builder
	sb.WriteByte('"')
	for _, c := range v {
		switch {
		case c == '\\':
			sb.WriteString(`\\`)
		case c == '"':
			sb.WriteString(`\"`)
		case c == '\n':
			sb.WriteString(`\n`)
		case c == '\r':
			sb.WriteString(`\r`)
		case c == '\t':
			sb.WriteString(`\t`)
		case c < 0x20 || c == 0x7F:
			sb.WriteString(fmt.Sprintf(`\x%02x`, c))
		default:
			sb.WriteRune(c)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}
