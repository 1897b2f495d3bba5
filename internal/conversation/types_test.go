package conversation

import "testing"

func TestParseMode(t *testing.T) {
	tests := []struct {
		raw  string
		want Mode
		ok   bool
	}{
		{"agent", ModeAgent, true},
		{"human", ModeHuman, true},
		{" Human ", ModeHuman, true},
		{"AGENT", ModeAgent, true},
		{"bot", "", false},
		{"", "", false},
		{"paused", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseMode(tt.raw)
		if ok != tt.ok || got != tt.want {
			t.Fatalf("ParseMode(%q) = (%q, %v), want (%q, %v)", tt.raw, got, ok, tt.want, tt.ok)
		}
	}
}
