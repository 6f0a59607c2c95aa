package relay

import "sync"

// MinCommitBytes is the default minimum amount of encoded audio that must
// be buffered before a flush commits. 2400 samples of PCM16 expand to
// 6400 base64 bytes, so this is roughly 100ms of audio at the wire
// encoding's expansion ratio. Committing less makes the provider reject
// the buffer as too small.
const MinCommitBytes = 6400

// FlushDecision is what a flush evaluation concluded: whether to commit
// the buffered audio upstream, and whether to open a new transcription
// response for it.
type FlushDecision struct {
	Commit         bool
	CreateResponse bool
}

// Gate tracks how much encoded audio has arrived since the last commit
// and whether a transcription response is outstanding. It enforces the
// two session invariants: never commit under the minimum threshold, and
// never hold more than one response in flight.
//
// The buffered count is a duration proxy measured in encoded message
// bytes, not an exact byte-to-duration mapping. It only resets when a
// commit is paired with a newly started response; a commit that merely
// queues behind an in-flight response keeps accumulating.
type Gate struct {
	mu        sync.Mutex
	buffered  int
	inFlight  bool
	threshold int
}

// NewGate returns a gate with the given commit threshold, falling back to
// MinCommitBytes when threshold is not positive.
func NewGate(threshold int) *Gate {
	if threshold <= 0 {
		threshold = MinCommitBytes
	}
	return &Gate{threshold: threshold}
}

// Append records the encoded length of one received audio message.
func (g *Gate) Append(n int) {
	if n <= 0 {
		return
	}
	g.mu.Lock()
	g.buffered += n
	g.mu.Unlock()
}

// Flush evaluates an explicit flush signal. Under the threshold it is a
// deliberate no-op. At or over it, the audio is committed; a new response
// is only opened when none is in flight, and only then does the buffered
// estimate reset.
func (g *Gate) Flush() FlushDecision {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.buffered < g.threshold {
		return FlushDecision{}
	}

	d := FlushDecision{Commit: true}
	if !g.inFlight {
		g.inFlight = true
		g.buffered = 0
		d.CreateResponse = true
	}
	return d
}

// ResponseStarted marks a response as in flight. Also driven directly by
// provider "response created" notifications, since the provider can open
// a response the relay did not ask for on error paths.
func (g *Gate) ResponseStarted() {
	g.mu.Lock()
	g.inFlight = true
	g.mu.Unlock()
}

// ResponseDone clears the in-flight flag; the next flush may open a new
// response.
func (g *Gate) ResponseDone() {
	g.mu.Lock()
	g.inFlight = false
	g.mu.Unlock()
}

// InFlight reports whether a response is outstanding.
func (g *Gate) InFlight() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inFlight
}

// Buffered reports the encoded bytes accumulated since the last reset.
func (g *Gate) Buffered() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.buffered
}
