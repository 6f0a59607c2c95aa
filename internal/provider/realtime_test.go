package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// mockRealtimeServer upgrades incoming connections and hands them to the
// test's handler after verifying auth and model query.
func mockRealtimeServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); !strings.HasPrefix(auth, "Bearer ") {
			t.Errorf("expected Bearer auth header, got: %s", auth)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if r.URL.Query().Get("model") == "" {
			t.Error("expected model query parameter")
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))
}

func testConfig(serverURL string) Config {
	return Config{
		BaseURL:            "ws" + strings.TrimPrefix(serverURL, "http"),
		Path:               "",
		Model:              "gpt-4o-realtime-preview",
		TranscriptionModel: "gpt-4o-transcribe",
		APIKey:             "sk-test",
	}
}

func dialTest(t *testing.T, serverURL string) *Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := Dial(ctx, testConfig(serverURL), zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return c
}

func TestClient_ConfigureSession(t *testing.T) {
	received := make(chan map[string]any, 1)
	server := mockRealtimeServer(t, func(conn *websocket.Conn) {
		var msg map[string]any
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		received <- msg
		// hold the connection open until the client goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	c := dialTest(t, server.URL)
	defer c.Close()

	if err := c.ConfigureSession("en"); err != nil {
		t.Fatalf("configure session: %v", err)
	}

	select {
	case msg := <-received:
		if msg["type"] != "session.update" {
			t.Errorf("expected session.update, got %v", msg["type"])
		}
		session, ok := msg["session"].(map[string]any)
		if !ok {
			t.Fatal("missing session object")
		}
		if session["input_audio_format"] != "pcm16" {
			t.Errorf("expected pcm16 input format, got %v", session["input_audio_format"])
		}
		// turn detection must be explicitly null: the relay commits
		if v, present := session["turn_detection"]; !present || v != nil {
			t.Errorf("expected explicit null turn_detection, got %v (present=%v)", v, present)
		}
		tc, ok := session["input_audio_transcription"].(map[string]any)
		if !ok {
			t.Fatal("missing input_audio_transcription")
		}
		if tc["language"] != "en" {
			t.Errorf("expected language en, got %v", tc["language"])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("session.update never arrived")
	}
}

func TestClient_InstructionVocabulary(t *testing.T) {
	received := make(chan string, 8)
	server := mockRealtimeServer(t, func(conn *websocket.Conn) {
		for {
			var msg map[string]any
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			b, _ := json.Marshal(msg)
			received <- string(b)
		}
	})
	defer server.Close()

	c := dialTest(t, server.URL)
	defer c.Close()

	if err := c.AppendAudio("AAAA"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := c.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := c.CreateResponse(); err != nil {
		t.Fatalf("create response: %v", err)
	}

	want := []struct {
		typ      string
		contains string
	}{
		{"input_audio_buffer.append", `"audio":"AAAA"`},
		{"input_audio_buffer.commit", ""},
		{"response.create", `"conversation":"none"`},
	}
	for _, w := range want {
		select {
		case raw := <-received:
			if !strings.Contains(raw, `"type":"`+w.typ+`"`) {
				t.Errorf("expected %s, got %s", w.typ, raw)
			}
			if w.contains != "" && !strings.Contains(raw, w.contains) {
				t.Errorf("expected %s to contain %s, got %s", w.typ, w.contains, raw)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("%s never arrived", w.typ)
		}
	}
}

func TestClient_EventStreamAndFatalClose(t *testing.T) {
	server := mockRealtimeServer(t, func(conn *websocket.Conn) {
		// two events in one newline-delimited batch, then drop
		batch := `{"type":"response.created"}` + "\n" +
			`{"type":"response.audio_transcript.delta","delta":"hi"}`
		if err := conn.WriteMessage(websocket.TextMessage, []byte(batch)); err != nil {
			return
		}
	})
	defer server.Close()

	c := dialTest(t, server.URL)
	defer c.Close()

	var got []Event
	deadline := time.After(3 * time.Second)
	for len(got) < 2 {
		select {
		case ev, ok := <-c.Events():
			if !ok {
				t.Fatalf("events closed early, got %d events", len(got))
			}
			got = append(got, ev)
		case <-deadline:
			t.Fatalf("timed out, got %d events", len(got))
		}
	}

	if got[0].Kind != KindResponseStarted {
		t.Errorf("expected response started first, got %+v", got[0])
	}
	if got[1].Kind != KindInterim || got[1].Text != "hi" {
		t.Errorf("expected interim hi, got %+v", got[1])
	}

	// server dropped the connection: the stream must end, not retry
	select {
	case _, ok := <-c.Events():
		if ok {
			t.Error("expected events channel to close after transport loss")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("events channel never closed after transport loss")
	}
}
