package relay

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/leonardotrapani/voxrelay/internal/config"
	"github.com/leonardotrapani/voxrelay/internal/metrics"
	"github.com/leonardotrapani/voxrelay/internal/protocol"
	"github.com/leonardotrapani/voxrelay/internal/provider"
)

// Session pairs one client websocket with one upstream provider
// connection. All per-connection state lives here: the commit gate, the
// effective language, nothing else. Created at connection open, discarded
// at close; never shared across connections.
type Session struct {
	id       string
	cfg      *config.Config
	client   *websocket.Conn
	upstream *provider.Client
	gate     *Gate
	language string
	log      *zap.SugaredLogger
	metrics  *metrics.Metrics

	writeMu    sync.Mutex // client writes come from two goroutines
	clientGone atomic.Bool
	wg         sync.WaitGroup
}

func newSession(client *websocket.Conn, cfg *config.Config, m *metrics.Metrics, log *zap.SugaredLogger) *Session {
	id := uuid.NewString()
	return &Session{
		id:       id,
		cfg:      cfg,
		client:   client,
		gate:     NewGate(cfg.Audio.MinCommitBytes),
		language: cfg.Transcription.Language,
		log:      log.With("session", id),
		metrics:  m,
	}
}

// run drives the session to completion: dial upstream, pump provider
// events down, handle client messages until either side goes away, then
// cascade the close so the paired connection never leaks.
func (s *Session) run() {
	s.metrics.SessionsTotal.Inc()
	s.metrics.SessionsActive.Inc()
	defer s.metrics.SessionsActive.Dec()

	dialCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	upstream, err := provider.Dial(dialCtx, provider.Config{
		BaseURL:            s.cfg.Provider.BaseURL,
		Path:               s.cfg.Provider.Path,
		Model:              s.cfg.Provider.Model,
		TranscriptionModel: s.cfg.Transcription.Model,
		APIKey:             s.cfg.Provider.APIKey,
	}, s.log)
	if err != nil {
		s.log.Errorw("upstream dial failed", "err", err)
		s.sendStatus(protocol.StatusProviderError)
		return
	}
	s.upstream = upstream

	if err := upstream.ConfigureSession(s.language); err != nil {
		s.log.Errorw("initial session configuration failed", "err", err)
		s.sendStatus(protocol.StatusProviderError)
		upstream.Close()
		return
	}

	s.wg.Add(1)
	go s.pumpEvents()

	s.readClient()

	// client side is done; tear down the pair
	s.clientGone.Store(true)
	upstream.Close()
	s.wg.Wait()

	s.log.Infow("session closed")
}

// readClient processes client messages in arrival order until the
// connection drops or a fatal upstream write error occurs.
func (s *Session) readClient() {
	for {
		mt, data, err := s.client.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debugw("client closed", "err", err)
			} else {
				s.log.Debugw("client read error", "err", err)
			}
			return
		}
		if mt != websocket.TextMessage {
			continue
		}

		var msg protocol.ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			// malformed client input is ignored, connection continues
			continue
		}

		if !s.handleClientMessage(msg) {
			return
		}
	}
}

// handleClientMessage returns false when the session must end.
func (s *Session) handleClientMessage(msg protocol.ClientMessage) bool {
	switch msg.Type {
	case protocol.TypeConfig:
		s.language = msg.Language
		if err := s.upstream.ConfigureSession(msg.Language); err != nil {
			return s.fatalUpstream("session update", err)
		}
		s.log.Infow("language updated", "language", msg.Language)

	case protocol.TypeAudioAppend:
		if msg.Audio == "" {
			return true
		}
		s.gate.Append(len(msg.Audio))
		s.metrics.AudioMessages.Inc()
		s.metrics.AudioBytes.Add(float64(len(msg.Audio)))
		// forward immediately, the relay never buffers audio itself
		if err := s.upstream.AppendAudio(msg.Audio); err != nil {
			return s.fatalUpstream("audio append", err)
		}

	case protocol.TypeFlush:
		d := s.gate.Flush()
		if !d.Commit {
			s.metrics.FlushesSkipped.Inc()
			return true
		}
		if err := s.upstream.Commit(); err != nil {
			return s.fatalUpstream("commit", err)
		}
		s.metrics.Commits.Inc()
		if d.CreateResponse {
			if err := s.upstream.CreateResponse(); err != nil {
				return s.fatalUpstream("response create", err)
			}
			s.metrics.ResponsesOpened.Inc()
		}

	case protocol.TypePing:
		s.writeClient(protocol.ServerMessage{Type: protocol.TypePong, T: msg.T})

	default:
		s.log.Debugw("unknown client message type", "type", msg.Type)
	}
	return true
}

func (s *Session) fatalUpstream(op string, err error) bool {
	s.log.Errorw("upstream write failed", "op", op, "err", err)
	s.sendStatus(protocol.StatusProviderError)
	return false
}

// pumpEvents translates normalized provider events into client messages
// and gate transitions until the upstream stream ends.
func (s *Session) pumpEvents() {
	defer s.wg.Done()

	for ev := range s.upstream.Events() {
		switch ev.Kind {
		case provider.KindResponseStarted:
			s.gate.ResponseStarted()

		case provider.KindResponseDone:
			s.gate.ResponseDone()

		case provider.KindInterim:
			if ev.Text == "" {
				continue
			}
			s.metrics.TranscriptsInterim.Inc()
			s.writeClient(protocol.ServerMessage{
				Type:    protocol.TypeTranscript,
				Channel: protocol.ChannelInterim,
				Text:    ev.Text,
			})

		case provider.KindFinal:
			if ev.Text == "" {
				continue
			}
			s.metrics.TranscriptsFinal.Inc()
			s.writeClient(protocol.ServerMessage{
				Type:    protocol.TypeTranscript,
				Channel: protocol.ChannelFinal,
				Text:    ev.Text,
			})

		case provider.KindError:
			// logged, never surfaced as transcript text
			s.metrics.ProviderErrors.Inc()
			s.log.Warnw("provider error event", "err", ev.Text)

		default:
			s.log.Debugw("provider event ignored", "type", ev.Type)
		}
	}

	// upstream is gone; if the client is still here, tell it and
	// cascade the close
	if !s.clientGone.Load() {
		s.sendStatus(protocol.StatusProviderError)
		_ = s.client.Close()
	}
}

func (s *Session) sendStatus(value string) {
	s.writeClient(protocol.ServerMessage{Type: protocol.TypeStatus, Value: value})
}

func (s *Session) writeClient(msg protocol.ServerMessage) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.client.WriteJSON(msg); err != nil {
		s.log.Debugw("client write failed", "err", err)
	}
}
