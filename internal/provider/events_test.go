package provider

import (
	"testing"
)

func TestParseBatch_InterimThenFinal(t *testing.T) {
	batch := []byte(`{"type":"response.audio_transcript.delta","delta":"hel"}
{"type":"response.audio_transcript.done","transcript":" lo "}`)

	events, err := ParseBatch(batch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Kind != KindInterim || events[0].Text != "hel" {
		t.Errorf("interim: got kind=%d text=%q, want untrimmed %q", events[0].Kind, events[0].Text, "hel")
	}
	if events[1].Kind != KindFinal || events[1].Text != "lo" {
		t.Errorf("final: got kind=%d text=%q, want trimmed %q", events[1].Kind, events[1].Text, "lo")
	}
}

func TestParseBatch_ToleratesHistoricalDeltaShapes(t *testing.T) {
	shapes := []string{
		`{"type":"response.text.delta","delta":"a"}`,
		`{"type":"response.audio_transcript.delta","delta":"a"}`,
		`{"type":"response.output_text.delta","delta":"a"}`,
	}
	for _, line := range shapes {
		events, err := ParseBatch([]byte(line))
		if err != nil {
			t.Fatalf("%s: %v", line, err)
		}
		if len(events) != 1 || events[0].Kind != KindInterim || events[0].Text != "a" {
			t.Errorf("%s: expected one interim %q, got %+v", line, "a", events)
		}
	}
}

func TestParseBatch_ToleratesHistoricalDoneShapes(t *testing.T) {
	shapes := []string{
		`{"type":"response.text.done","text":" done "}`,
		`{"type":"response.audio_transcript.done","transcript":" done "}`,
		`{"type":"response.output_text.done","text":" done "}`,
	}
	for _, line := range shapes {
		events, err := ParseBatch([]byte(line))
		if err != nil {
			t.Fatalf("%s: %v", line, err)
		}
		if len(events) != 1 || events[0].Kind != KindFinal || events[0].Text != "done" {
			t.Errorf("%s: expected one trimmed final, got %+v", line, events)
		}
	}
}

func TestParseBatch_Lifecycle(t *testing.T) {
	events, err := ParseBatch([]byte(`{"type":"response.created"}
{"type":"response.done"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Kind != KindResponseStarted {
		t.Errorf("expected response started, got %+v", events[0])
	}
	if events[1].Kind != KindResponseDone {
		t.Errorf("expected response done, got %+v", events[1])
	}
}

func TestParseBatch_MalformedLineAbortsRemainder(t *testing.T) {
	batch := []byte(`{"type":"response.text.delta","delta":"ok"}
{not json
{"type":"response.text.delta","delta":"never seen"}`)

	events, err := ParseBatch(batch)
	if err == nil {
		t.Fatal("expected an error for the malformed line")
	}
	if len(events) != 1 {
		t.Fatalf("expected only the event before the bad line, got %d", len(events))
	}
	if events[0].Text != "ok" {
		t.Errorf("kept event should be the first one, got %q", events[0].Text)
	}
}

func TestParseBatch_ErrorEventNotTranscript(t *testing.T) {
	events, err := ParseBatch([]byte(`{"type":"error","error":{"type":"invalid_request_error","code":"buffer_too_small","message":"buffer too small"}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 || events[0].Kind != KindError {
		t.Fatalf("expected one error event, got %+v", events)
	}
	if events[0].Text != "buffer_too_small: buffer too small" {
		t.Errorf("unexpected error text %q", events[0].Text)
	}
}

func TestParseBatch_UnknownTypesIgnored(t *testing.T) {
	events, err := ParseBatch([]byte(`{"type":"rate_limits.updated"}
{"type":"session.created"}
{"type":"some.future.event"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, ev := range events {
		if ev.Kind != KindIgnored {
			t.Errorf("expected %s to be ignored, got kind %d", ev.Type, ev.Kind)
		}
	}
}

func TestParseBatch_SkipsBlankLines(t *testing.T) {
	events, err := ParseBatch([]byte("\n\n{\"type\":\"response.created\"}\n\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
}
