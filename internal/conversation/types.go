// Package conversation manages the logical conversation record and its
// conversation mode, the switch that decides whether automated replies run.
package conversation

import (
	"strings"
	"time"

	"github.com/omnigatehq/omnigate/internal/channel"
)

// Mode controls who answers the end user. While a conversation is in
// ModeHuman, inbound messages are recorded but never trigger an automated
// reply.
type Mode string

const (
	ModeAgent Mode = "agent"
	ModeHuman Mode = "human"
)

// ParseMode validates a raw mode value. Anything outside the two known modes
// is rejected before any state is touched.
func ParseMode(raw string) (Mode, bool) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case ModeAgent:
		return ModeAgent, true
	case ModeHuman:
		return ModeHuman, true
	}
	return "", false
}

// Conversation is one agent-to-end-user thread on a specific channel.
type Conversation struct {
	ID        string       `json:"id"`
	AgentID   string       `json:"agentId"`
	ContactID string       `json:"contactId"`
	Phone     string       `json:"phone"`
	Channel   channel.Kind `json:"channel"`
	Mode      Mode         `json:"mode"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// ContactKey identifies the end-user side of a conversation for lookup and
// lazy creation.
type ContactKey struct {
	AgentID   string
	ContactID string
	Phone     string
	Channel   channel.Kind
}
