package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Config describes the upstream realtime endpoint for one session.
type Config struct {
	BaseURL            string // e.g. "wss://api.openai.com"
	Path               string // e.g. "/v1/realtime"
	Model              string // realtime model, goes into the query string
	TranscriptionModel string // model used for input audio transcription
	APIKey             string
}

// Client is one persistent streaming connection to the transcription
// provider. It carries the outbound instruction vocabulary (session
// configuration, audio append, buffer commit, response create) and
// exposes inbound traffic as normalized Events.
//
// There is no reconnection here: a transport failure is fatal for the
// session pair and surfaces as the Events channel closing.
type Client struct {
	cfg  Config
	conn *websocket.Conn
	log  *zap.SugaredLogger

	writeMu sync.Mutex
	events  chan Event

	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Outgoing instruction shapes.
type sessionUpdate struct {
	Type    string        `json:"type"`
	Session sessionConfig `json:"session"`
}

type sessionConfig struct {
	Modalities              []string             `json:"modalities"`
	InputAudioFormat        string               `json:"input_audio_format"`
	InputAudioTranscription *transcriptionConfig `json:"input_audio_transcription,omitempty"`
	// no omitempty: an explicit null disables server-side turn
	// detection, the relay decides when to commit
	TurnDetection *turnDetection `json:"turn_detection"`
}

type transcriptionConfig struct {
	Model    string `json:"model,omitempty"`
	Language string `json:"language,omitempty"`
}

type turnDetection struct {
	Type string `json:"type"`
}

type audioAppend struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

type instruction struct {
	Type string `json:"type"`
}

type responseCreate struct {
	Type     string         `json:"type"`
	Response responseParams `json:"response"`
}

type responseParams struct {
	// Conversation "none" keeps every response an isolated exchange:
	// each flush is transcribed independently of prior flushes.
	Conversation string   `json:"conversation"`
	Modalities   []string `json:"modalities"`
}

// Dial connects to the provider and starts the event reader. The returned
// client must be Closed by the caller.
func Dial(ctx context.Context, cfg Config, log *zap.SugaredLogger) (*Client, error) {
	wsURL, err := buildURL(cfg)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+cfg.APIKey)
	headers.Set("OpenAI-Beta", "realtime=v1")

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			log.Warnf("dial failed with status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("provider dial: %w", err)
	}

	c := &Client{
		cfg:    cfg,
		conn:   conn,
		log:    log,
		events: make(chan Event, 32),
	}

	c.wg.Add(1)
	go c.readLoop()

	log.Infow("provider connected", "model", cfg.Model)
	return c, nil
}

func buildURL(cfg Config) (string, error) {
	u, err := url.Parse(cfg.BaseURL + cfg.Path)
	if err != nil {
		return "", fmt.Errorf("parse provider url: %w", err)
	}
	if cfg.Model != "" {
		q := u.Query()
		q.Set("model", cfg.Model)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// ConfigureSession pushes a session.update for text-only transcription at
// the given language. Called once after dialing and again whenever the
// client changes language mid-session.
func (c *Client) ConfigureSession(language string) error {
	update := sessionUpdate{
		Type: "session.update",
		Session: sessionConfig{
			Modalities:       []string{"text"},
			InputAudioFormat: "pcm16",
			InputAudioTranscription: &transcriptionConfig{
				Model:    c.cfg.TranscriptionModel,
				Language: language,
			},
			TurnDetection: nil,
		},
	}
	return c.writeJSON(update)
}

// AppendAudio forwards one text-safe encoded audio chunk upstream. The
// payload is passed through exactly as the capture client produced it.
func (c *Client) AppendAudio(encoded string) error {
	return c.writeJSON(audioAppend{Type: "input_audio_buffer.append", Audio: encoded})
}

// Commit finalizes the span of audio appended since the last commit.
func (c *Client) Commit() error {
	return c.writeJSON(instruction{Type: "input_audio_buffer.commit"})
}

// CreateResponse asks the provider to transcribe the committed audio as a
// single isolated text-only exchange.
func (c *Client) CreateResponse() error {
	return c.writeJSON(responseCreate{
		Type: "response.create",
		Response: responseParams{
			Conversation: "none",
			Modalities:   []string{"text"},
		},
	})
}

func (c *Client) writeJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}

// Events returns the normalized event stream. The channel closes when the
// upstream connection is gone, which the session treats as fatal.
func (c *Client) Events() <-chan Event {
	return c.events
}

func (c *Client) readLoop() {
	defer c.wg.Done()
	defer close(c.events)

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debugw("provider closed", "err", err)
			} else {
				c.log.Warnw("provider read error", "err", err)
			}
			return
		}

		events, err := ParseBatch(message)
		if err != nil {
			// one bad line drops the rest of its batch, nothing more
			c.log.Warnw("provider event batch truncated", "err", err)
		}
		for _, ev := range events {
			c.events <- ev
		}
	}
}

// Close tears the connection down and waits for the reader to finish.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		// best effort close frame, then drop the transport
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = c.conn.Close()
	})
	c.wg.Wait()
	return nil
}
