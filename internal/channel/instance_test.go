package channel

import (
	"testing"
)

func TestParseInstanceName(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		agent   string
		endUser string
		wantErr bool
	}{
		{name: "simple", raw: "agent-a1-user-u1", agent: "a1", endUser: "u1"},
		{name: "uuid parts", raw: "agent-550e8400-e29b-41d4-a716-446655440000-user-7c9e6679-7425-40de-944b-e07fc1f90ae7", agent: "550e8400-e29b-41d4-a716-446655440000", endUser: "7c9e6679-7425-40de-944b-e07fc1f90ae7"},
		{name: "missing prefix", raw: "a1-user-u1", wantErr: true},
		{name: "missing user segment", raw: "agent-a1-u1", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
		{name: "whitespace only", raw: "   ", wantErr: true},
		{name: "underscore rejected", raw: "agent-a_1-user-u1", wantErr: true},
		{name: "ambiguous agent id", raw: "agent-a-user-x-user-u1", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseInstanceName(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q, got %+v", tt.raw, got)
				}
				if !IsValidation(err) {
					t.Fatalf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.AgentID != tt.agent || got.EndUserID != tt.endUser {
				t.Fatalf("got %+v, want agent=%s endUser=%s", got, tt.agent, tt.endUser)
			}
		})
	}
}

func TestInstanceNameRoundTrip(t *testing.T) {
	name, err := NewInstanceName("a1", "u1")
	if err != nil {
		t.Fatalf("NewInstanceName: %v", err)
	}
	if name.String() != "agent-a1-user-u1" {
		t.Fatalf("rendered %q", name.String())
	}
	parsed, err := ParseInstanceName(name.String())
	if err != nil {
		t.Fatalf("ParseInstanceName: %v", err)
	}
	if parsed != name {
		t.Fatalf("round trip mismatch: %+v != %+v", parsed, name)
	}
}

func TestNewInstanceNameRejectsAmbiguousParts(t *testing.T) {
	if _, err := NewInstanceName("a-user-b", "u1"); err == nil {
		t.Fatal("expected error for agent id containing separator")
	}
	if _, err := NewInstanceName("", "u1"); err == nil {
		t.Fatal("expected error for empty agent id")
	}
	if _, err := NewInstanceName("a1", ""); err == nil {
		t.Fatal("expected error for empty end user id")
	}
}
