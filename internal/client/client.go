// Package client implements the capture side of the relay protocol:
// frame accumulation, encoding, the periodic flush cadence and live
// transcript composition. The browser page does the same job in
// production; this implementation backs the headless stream command and
// the protocol tests.
package client

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/leonardotrapani/voxrelay/internal/audio"
	"github.com/leonardotrapani/voxrelay/internal/protocol"
	"github.com/leonardotrapani/voxrelay/internal/transcript"
)

// DefaultFlushInterval is how often the client asks the relay to evaluate
// a commit while capture is running.
const DefaultFlushInterval = 1200 * time.Millisecond

// Conn is the transport the controller talks over. *gorilla/websocket.Conn
// satisfies it; tests plug in a fake.
type Conn interface {
	WriteJSON(v interface{}) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// Options configures a Controller.
type Options struct {
	// Language is sent in the initial config message. Empty means
	// provider auto-detect.
	Language string
	// FlushInterval overrides DefaultFlushInterval when positive.
	FlushInterval time.Duration
}

// Controller owns one client connection: it feeds captured samples
// through the accumulator, sends encoded frames and periodic flushes, and
// folds incoming transcript fragments into a smoothed display string.
type Controller struct {
	conn    Conn
	opts    Options
	acc     audio.Accumulator
	updates chan string

	compMu   sync.Mutex
	composer transcript.Composer

	writeMu  sync.Mutex
	stopOnce sync.Once
	done     chan struct{}
	wg       sync.WaitGroup
}

func New(conn Conn, opts Options) *Controller {
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = DefaultFlushInterval
	}
	return &Controller{
		conn:    conn,
		opts:    opts,
		updates: make(chan string, 64),
		done:    make(chan struct{}),
	}
}

// Start sends the session config and launches the flush ticker and the
// transcript reader.
func (c *Controller) Start() error {
	if err := c.writeJSON(protocol.ClientMessage{
		Type:     protocol.TypeConfig,
		Language: c.opts.Language,
	}); err != nil {
		return fmt.Errorf("send config: %w", err)
	}

	c.wg.Add(2)
	go c.flushLoop()
	go c.readLoop()
	return nil
}

// Feed accepts a chunk of raw samples at sourceRate. Whenever the
// accumulator releases a frame it goes straight onto the wire.
func (c *Controller) Feed(samples []float32, sourceRate int) error {
	frame := c.acc.Push(samples, sourceRate)
	if frame == nil {
		return nil
	}
	return c.sendFrame(frame)
}

// Flush asks the relay to evaluate a commit now.
func (c *Controller) Flush() error {
	return c.writeJSON(protocol.ClientMessage{Type: protocol.TypeFlush})
}

// Updates delivers the smoothed display string after every transcript
// fragment. The channel closes when the connection ends.
func (c *Controller) Updates() <-chan string {
	return c.updates
}

// Stop sends whatever audio is still pending followed by one last flush,
// then stops the ticker. The connection stays open so late transcript
// fragments still arrive; call Close when done reading them.
func (c *Controller) Stop() error {
	var err error
	c.stopOnce.Do(func() {
		close(c.done)
		if tail := c.acc.Drain(); len(tail) > 0 {
			err = c.sendFrame(tail)
		}
		if flushErr := c.Flush(); err == nil {
			err = flushErr
		}
	})
	return err
}

// Close tears the connection down and waits for the reader to finish.
func (c *Controller) Close() error {
	_ = c.Stop()
	err := c.conn.Close()
	c.wg.Wait()
	return err
}

func (c *Controller) sendFrame(frame []float32) error {
	return c.writeJSON(protocol.ClientMessage{
		Type:  protocol.TypeAudioAppend,
		Audio: audio.EncodeFrame(frame),
	})
}

func (c *Controller) writeJSON(msg protocol.ClientMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(msg)
}

func (c *Controller) flushLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.opts.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			// best effort: a failed flush shows up on the next
			// read anyway
			_ = c.Flush()
		}
	}
}

func (c *Controller) readLoop() {
	defer c.wg.Done()
	defer close(c.updates)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg protocol.ServerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case protocol.TypeTranscript:
			c.compMu.Lock()
			var display string
			if msg.Channel == protocol.ChannelFinal {
				display = c.composer.Final(msg.Text)
			} else {
				display = c.composer.Interim(msg.Text)
			}
			c.compMu.Unlock()
			select {
			case c.updates <- display:
			default:
				// a slow consumer only misses intermediate
				// snapshots, never the latest once it catches up
			}

		case protocol.TypeStatus:
			// surfaced through the updates channel closing once
			// the relay drops the connection; nothing to do here

		case protocol.TypePong:
			// latency measurement is the caller's concern
		}
	}
}

// Transcript returns the current composed display string.
func (c *Controller) Transcript() string {
	c.compMu.Lock()
	defer c.compMu.Unlock()
	return c.composer.Display()
}
