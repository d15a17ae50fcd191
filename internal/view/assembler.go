// Package view reconstructs renderable message histories from the raw phase-
// tagged record set. It is a pure function over its inputs: nothing here is
// persisted and the input slice is never mutated.
package view

import (
	"sort"

	"github.com/samber/lo"

	"github.com/rapturt9/interactive-worlds-sub000/internal/chat"
	"github.com/rapturt9/interactive-worlds-sub000/internal/prompt"
)

// Mode selects the audience the history is assembled for.
type Mode int

const (
	// Debug shows every phase, annotated with synthesized boundary markers
	// and the system prompt each phase ran under.
	Debug Mode = iota
	// Production shows gameplay only, deduplicated, with one synthesized
	// gameplay system prompt up front.
	Production
)

// Assemble builds the display history for the given mode. Canonical state is
// passed in so synthesized system prompts reflect what the next generation
// call would actually see.
func Assemble(messages []*chat.Message, currentPhase string, mode Mode, bible, character string) []*chat.Message {
	ordered := make([]*chat.Message, len(messages))
	copy(ordered, messages)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	if mode == Debug {
		return assembleDebug(ordered, bible, character)
	}
	return assembleProduction(ordered, currentPhase, bible, character)
}

func assembleDebug(ordered []*chat.Message, bible, character string) []*chat.Message {
	out := make([]*chat.Message, 0, len(ordered)+8)
	prevPhase := ""
	for _, m := range ordered {
		if m.Phase != prevPhase {
			marker := chat.NewBoundaryMarker(m.Phase, m.Timestamp)
			sys := prompt.SystemMessage(m.Phase, bible, character)
			sys.Timestamp = m.Timestamp
			out = append(out, marker, sys)
			prevPhase = m.Phase
		}
		out = append(out, m)
	}
	return out
}

func assembleProduction(ordered []*chat.Message, currentPhase, bible, character string) []*chat.Message {
	gameplay := lo.Filter(ordered, func(m *chat.Message, _ int) bool {
		if !chat.IsGameplayPhase(m.Phase) {
			return false
		}
		// World and character records never belong here, and neither do
		// synthetic leftovers that slipped into storage through old data.
		if m.Role == chat.RoleSystem || m.Synthetic || m.IsBoundaryMarker() {
			return false
		}
		return !chat.IsSyntheticConfirmation(m.Content)
	})

	// Copy-forward guarantees duplicates share their id, so keeping the
	// first occurrence in timestamp order is exact.
	deduped := lo.UniqBy(gameplay, func(m *chat.Message) string { return m.ID })
	if len(deduped) == 0 {
		return nil
	}

	phase := currentPhase
	if !chat.IsGameplayPhase(phase) {
		phase = chat.PhaseChat0
	}
	sys := prompt.SystemMessage(phase, bible, character)
	sys.Timestamp = deduped[0].Timestamp

	out := make([]*chat.Message, 0, len(deduped)+1)
	out = append(out, sys)
	return append(out, deduped...)
}
