// Package chat defines the message model shared by the session core: roles,
// phase tags, and the structured part union carried alongside flattened text.
package chat

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Phases of a session. Gameplay phases are "chat0", "chat1", ... but the
// driving logic only ever produces chat0; any index is accepted on input.
const (
	PhaseWorld     = "world"
	PhaseCharacter = "character"
	PhaseChat0     = "chat0"

	gameplayPrefix = "chat"
)

// PartKind tags entries of Message.Parts.
type PartKind string

const (
	PartText       PartKind = "text"
	PartReasoning  PartKind = "reasoning"
	PartToolCall   PartKind = "tool_call"
	PartToolResult PartKind = "tool_result"
)

// Part is one fragment of a structured assistant message. Exactly the fields
// relevant to its Kind are set.
type Part struct {
	Kind PartKind `json:"kind"`
	Text string   `json:"text,omitempty"`

	// Tool call / result fields.
	ToolName string `json:"tool_name,omitempty"`
	ToolArgs string `json:"tool_args,omitempty"`
	Result   string `json:"result,omitempty"`
}

// Message is one turn of the conversation. The same logical message may be
// stored under several phases after copy-forward; such copies share ID and
// Timestamp and differ only in Phase.
type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Parts     []Part    `json:"parts,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Phase     string    `json:"phase"`

	// Synthetic marks records the assembler fabricates for display (phase
	// boundaries, on-demand system prompts). Synthetic records are never
	// persisted.
	Synthetic bool `json:"synthetic,omitempty"`
}

// NewMessage builds a persisted-shape message with a fresh id.
func NewMessage(role, content, phase string) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
		Phase:     phase,
	}
}

// FlattenText joins the text parts of a message, falling back to Content when
// no structured parts are present. Reasoning and tool fragments are skipped.
func (m *Message) FlattenText() string {
	if len(m.Parts) == 0 {
		return m.Content
	}
	var sb strings.Builder
	for _, p := range m.Parts {
		if p.Kind == PartText {
			sb.WriteString(p.Text)
		}
	}
	if sb.Len() == 0 {
		return m.Content
	}
	return sb.String()
}

// Clone returns a deep copy of the message.
func (m *Message) Clone() *Message {
	cp := *m
	if m.Parts != nil {
		cp.Parts = make([]Part, len(m.Parts))
		copy(cp.Parts, m.Parts)
	}
	return &cp
}

// BoundaryMarkerPrefix starts the content of synthesized phase-boundary
// records. They exist only for display and are filtered out everywhere else.
const BoundaryMarkerPrefix = "=== Phase:"

// NewBoundaryMarker builds the display-only record announcing entry into a
// phase.
func NewBoundaryMarker(phase string, at time.Time) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Role:      RoleSystem,
		Content:   BoundaryMarkerPrefix + " " + phase + " ===",
		Timestamp: at,
		Phase:     phase,
		Synthetic: true,
	}
}

// IsBoundaryMarker reports whether m is a phase-boundary display record.
func (m *Message) IsBoundaryMarker() bool {
	return strings.HasPrefix(m.Content, BoundaryMarkerPrefix)
}

// IsSyntheticConfirmation matches confirmation blurbs older clients stored
// alongside real messages. They are regenerated on demand and must never be
// copied forward or shown twice.
func IsSyntheticConfirmation(content string) bool {
	if strings.Contains(content, "Starting") && strings.Contains(content, "Phase") {
		return true
	}
	return strings.Contains(content, "extracted successfully")
}

// IsGameplayPhase reports whether phase is one of the chatN gameplay phases.
func IsGameplayPhase(phase string) bool {
	if !strings.HasPrefix(phase, gameplayPrefix) {
		return false
	}
	_, err := strconv.Atoi(phase[len(gameplayPrefix):])
	return err == nil
}

// ValidPhase reports whether phase names a known phase.
func ValidPhase(phase string) bool {
	return phase == PhaseWorld || phase == PhaseCharacter || IsGameplayPhase(phase)
}

// NextPhase returns the successor in the fixed world -> character -> chat0
// sequence. Gameplay phases have no automatic successor.
func NextPhase(phase string) (string, bool) {
	switch phase {
	case PhaseWorld:
		return PhaseCharacter, true
	case PhaseCharacter:
		return PhaseChat0, true
	}
	return "", false
}
