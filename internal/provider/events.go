package provider

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// EventKind classifies a normalized provider event. The provider's event
// vocabulary has accumulated several overlapping shapes for "some text
// became available" and "this text is finished" across API revisions;
// normalization collapses all of them into this closed set so downstream
// code never tracks provider versioning.
type EventKind int

const (
	// KindIgnored covers event types the relay has no use for. New
	// provider vocabulary lands here instead of breaking anything.
	KindIgnored EventKind = iota
	// KindInterim is a provisional transcript fragment.
	KindInterim
	// KindFinal is a terminal transcript fragment for its response.
	KindFinal
	// KindResponseStarted marks a transcription response being opened.
	KindResponseStarted
	// KindResponseDone marks a transcription response completing.
	KindResponseDone
	// KindError is an explicit provider error event. Logged, never
	// forwarded as transcript text.
	KindError
)

// Event is the normalized form of one provider event line. Type keeps the
// raw provider type string for logging.
type Event struct {
	Kind EventKind
	Type string
	Text string
}

// serverEvent mirrors the union of the provider wire shapes we care
// about. Delta carries interim text, Text and Transcript carry final text
// depending on the event family.
type serverEvent struct {
	Type       string       `json:"type"`
	Delta      string       `json:"delta,omitempty"`
	Text       string       `json:"text,omitempty"`
	Transcript string       `json:"transcript,omitempty"`
	Error      *serverError `json:"error,omitempty"`
}

type serverError struct {
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// normalize maps one parsed provider event onto the outward vocabulary.
// Interim text is forwarded untouched; final text is whitespace-trimmed.
func normalize(ev serverEvent) Event {
	switch ev.Type {
	case "response.created":
		return Event{Kind: KindResponseStarted, Type: ev.Type}

	case "response.done":
		return Event{Kind: KindResponseDone, Type: ev.Type}

	case "response.audio_transcript.delta", "response.text.delta", "response.output_text.delta":
		return Event{Kind: KindInterim, Type: ev.Type, Text: ev.Delta}

	case "response.audio_transcript.done":
		return Event{Kind: KindFinal, Type: ev.Type, Text: strings.TrimSpace(ev.Transcript)}

	case "response.text.done", "response.output_text.done":
		text := ev.Text
		if text == "" {
			text = ev.Transcript
		}
		return Event{Kind: KindFinal, Type: ev.Type, Text: strings.TrimSpace(text)}

	case "error":
		msg := "unknown error"
		if ev.Error != nil {
			msg = ev.Error.Message
			if ev.Error.Code != "" {
				msg = fmt.Sprintf("%s: %s", ev.Error.Code, msg)
			}
		}
		return Event{Kind: KindError, Type: ev.Type, Text: msg}
	}

	return Event{Kind: KindIgnored, Type: ev.Type}
}

// ParseBatch parses a websocket payload that may carry several
// newline-delimited event objects and normalizes each line. A malformed
// line aborts the remainder of that batch; events already parsed are
// still returned alongside the error so the connection continues.
func ParseBatch(data []byte) ([]Event, error) {
	var events []Event
	for _, line := range bytes.Split(data, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		var ev serverEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			return events, fmt.Errorf("parse event line: %w", err)
		}
		events = append(events, normalize(ev))
	}
	return events, nil
}
