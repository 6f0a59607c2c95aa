package transcript

import "testing"

func TestCompose(t *testing.T) {
	tests := []struct {
		name    string
		finals  []string
		interim string
		want    string
	}{
		{"finals only", []string{"a", "b"}, "", "a b"},
		{"finals plus interim", []string{"a"}, "b", "a b"},
		{"empty", nil, "", ""},
		{"interim only", nil, "hello", "hello"},
		{"trims result", []string{"a"}, "b ", "a b"},
		{"empty slice", []string{}, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Compose(tt.finals, tt.interim); got != tt.want {
				t.Errorf("Compose(%v, %q) = %q, want %q", tt.finals, tt.interim, got, tt.want)
			}
		})
	}
}

func TestSmooth(t *testing.T) {
	tests := []struct {
		name string
		prev string
		next string
		want string
	}{
		{"adopt from empty", "", "x", "x"},
		{"clear on empty next", "x", "", ""},
		{"retain on prefix regression", "hello wor", "hello", "hello wor"},
		{"replace on non-prefix", "hi the", "hello", "hello"},
		{"replace on extension", "hello", "hello world", "hello world"},
		{"equal strings", "same", "same", "same"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Smooth(tt.prev, tt.next); got != tt.want {
				t.Errorf("Smooth(%q, %q) = %q, want %q", tt.prev, tt.next, got, tt.want)
			}
		})
	}
}

func TestComposer_InterimThenFinal(t *testing.T) {
	var c Composer

	if got := c.Interim("hel"); got != "hel" {
		t.Errorf("after interim: got %q, want %q", got, "hel")
	}
	if got := c.Interim("hello wor"); got != "hello wor" {
		t.Errorf("after longer interim: got %q, want %q", got, "hello wor")
	}
	// regression to a prefix keeps the longer display
	if got := c.Interim("hello"); got != "hello wor" {
		t.Errorf("after prefix regression: got %q, want %q", got, "hello wor")
	}
	// a final replaces everything, no smoothing
	if got := c.Final("hello world"); got != "hello world" {
		t.Errorf("after final: got %q, want %q", got, "hello world")
	}
	if got := c.Interim("how"); got != "hello world how" {
		t.Errorf("second utterance interim: got %q, want %q", got, "hello world how")
	}
	if got := c.Final("how are you"); got != "hello world how are you" {
		t.Errorf("second final: got %q, want %q", got, "hello world how are you")
	}
}

func TestComposer_EmptyFinalClearsInterim(t *testing.T) {
	var c Composer
	c.Interim("noise")
	if got := c.Final(""); got != "" {
		t.Errorf("empty final should clear interim, got %q", got)
	}
}

func TestComposer_Reset(t *testing.T) {
	var c Composer
	c.Final("something")
	c.Reset()
	if c.Display() != "" {
		t.Errorf("expected empty display after reset, got %q", c.Display())
	}
}
