// Package protocol defines the JSON messages exchanged between a capture
// client (the browser page or the headless stream command) and the relay.
package protocol

// Message types sent by the client.
const (
	TypeConfig      = "config"
	TypeAudioAppend = "client.audio.append"
	TypeFlush       = "client.flush"
	TypePing        = "ping"
)

// Message types sent by the relay.
const (
	TypeTranscript = "transcript"
	TypeStatus     = "status"
	TypePong       = "pong"
)

// Transcript channels.
const (
	ChannelInterim = "interim"
	ChannelFinal   = "final"
)

// StatusProviderError is sent when the upstream provider connection fails.
const StatusProviderError = "provider-error"

// ClientMessage is one client-to-relay message. Which fields are populated
// depends on Type: Language for config, Audio for audio appends, T for
// pings. Flush carries no payload.
type ClientMessage struct {
	Type     string `json:"type"`
	Language string `json:"language,omitempty"`
	Audio    string `json:"audio,omitempty"`
	T        int64  `json:"t,omitempty"`
}

// ServerMessage is one relay-to-client message. Channel and Text are set
// for transcripts, Value for status, T for pong echoes.
type ServerMessage struct {
	Type    string `json:"type"`
	Channel string `json:"channel,omitempty"`
	Text    string `json:"text,omitempty"`
	Value   string `json:"value,omitempty"`
	T       int64  `json:"t,omitempty"`
}
