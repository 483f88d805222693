package model

import "testing"

func TestNormalizeAnswer(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"b", "B"},
		{" C ", "C"},
		{"B.", "B"},
		{"(d)", "D"},
		{"option a", "A"},
		{"Option E!", "E"},
		{"photosynthesis", "photosynthesis"},
		{"  the mitochondria  ", "the mitochondria"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeAnswer(tt.in); got != tt.want {
			t.Errorf("NormalizeAnswer(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPhaseStarted(t *testing.T) {
	for p, want := range map[Phase]bool{
		PhaseNotStarted:      false,
		PhaseInstructions:    false,
		PhaseReadingQuestion: true,
		PhaseAwaitingAnswer:  true,
		PhaseComplete:        true,
	} {
		if got := p.Started(); got != want {
			t.Errorf("%s.Started() = %v, want %v", p, got, want)
		}
	}
}
