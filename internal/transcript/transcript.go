package transcript

import "strings"

// Compose joins finalized fragments with single spaces and appends the
// current interim fragment, if any. Pure function, no hidden state.
func Compose(finals []string, interim string) string {
	s := strings.Join(finals, " ")
	switch {
	case s == "":
		s = interim
	case interim != "":
		s = s + " " + interim
	}
	return strings.TrimSpace(s)
}

// Smooth suppresses flicker on interim updates. A provisional transcript
// sometimes shortens mid-stream while the provider rewrites its tail;
// showing that regression makes the display jump. If next is a strict
// prefix of prev we keep prev, otherwise we adopt next. Empty prev adopts
// next, empty next clears.
func Smooth(prev, next string) string {
	if prev == "" {
		return next
	}
	if next == "" {
		return ""
	}
	if len(next) < len(prev) && strings.HasPrefix(prev, next) {
		return prev
	}
	return next
}

// Composer accumulates finalized fragments and the latest interim fragment
// and maintains the smoothed display string. Not safe for concurrent use.
type Composer struct {
	finals  []string
	interim string
	display string
}

// Interim replaces the current interim fragment and returns the updated
// display string with smoothing applied.
func (c *Composer) Interim(text string) string {
	c.interim = text
	c.display = Smooth(c.display, Compose(c.finals, c.interim))
	return c.display
}

// Final appends a finalized fragment, clears the interim fragment and
// returns the updated display string. Finals are authoritative, so no
// smoothing here.
func (c *Composer) Final(text string) string {
	if text != "" {
		c.finals = append(c.finals, text)
	}
	c.interim = ""
	c.display = Compose(c.finals, "")
	return c.display
}

// Display returns the current display string.
func (c *Composer) Display() string {
	return c.display
}

// Reset discards all accumulated state.
func (c *Composer) Reset() {
	c.finals = nil
	c.interim = ""
	c.display = ""
}
