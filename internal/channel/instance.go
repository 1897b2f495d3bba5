package channel

import (
	"fmt"
	"regexp"
	"strings"
)

// InstanceName is the durable per-agent-per-end-user session identifier used
// by session-based channels. The rendered form is an implicit protocol shared
// with the providers, so it is modeled as a typed value with a parser that
// fails closed on malformed input.
type InstanceName struct {
	AgentID   string
	EndUserID string
}

var instanceNamePattern = regexp.MustCompile(`^agent-([0-9a-zA-Z-]+)-user-([0-9a-zA-Z-]+)$`)

// NewInstanceName builds an InstanceName from its parts.
func NewInstanceName(agentID, endUserID string) (InstanceName, error) {
	agentID = strings.TrimSpace(agentID)
	endUserID = strings.TrimSpace(endUserID)
	if agentID == "" {
		return InstanceName{}, NewValidationError("agentId", "is required")
	}
	if endUserID == "" {
		return InstanceName{}, NewValidationError("endUserId", "is required")
	}
	name := InstanceName{AgentID: agentID, EndUserID: endUserID}
	// Round-trip through the pattern so ids containing the separator words
	// cannot produce an ambiguous rendering.
	if _, err := ParseInstanceName(name.String()); err != nil {
		return InstanceName{}, err
	}
	return name, nil
}

// ParseInstanceName parses the rendered "agent-{agentId}-user-{endUserId}"
// form. A string that does not match the fixed pattern is an input-validation
// error, not a transport error.
func ParseInstanceName(raw string) (InstanceName, error) {
	m := instanceNamePattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return InstanceName{}, NewValidationError("instanceName", fmt.Sprintf("%q does not match agent-{agentId}-user-{endUserId}", raw))
	}
	// Greedy matching could swallow a "-user-" inside the agent id; reject
	// ambiguous inputs instead of guessing.
	if strings.Contains(m[1], "-user-") || strings.Contains(m[2], "-user-") || strings.Contains(m[2], "agent-") {
		return InstanceName{}, NewValidationError("instanceName", fmt.Sprintf("%q is ambiguous", raw))
	}
	return InstanceName{AgentID: m[1], EndUserID: m[2]}, nil
}

// String renders the canonical instance name.
func (n InstanceName) String() string {
	return fmt.Sprintf("agent-%s-user-%s", n.AgentID, n.EndUserID)
}

// IsZero reports whether the name carries no identity.
func (n InstanceName) IsZero() bool {
	return n.AgentID == "" && n.EndUserID == ""
}
