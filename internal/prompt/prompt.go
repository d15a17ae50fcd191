// Package prompt synthesizes per-phase system prompts from canonical state.
// Prompts are built on demand and never persisted.
package prompt

import (
	"fmt"

	"github.com/rapturt9/interactive-worlds-sub000/internal/chat"
)

const worldPrompt = `You are a world-builder for an interactive text adventure. Work with the user to invent a setting. When the setting is agreed, produce the complete world bible wrapped in <bible></bible> tags and a short evocative title for the adventure wrapped in <chat_name></chat_name> tags.`

const characterPrompt = `You are guiding the user through creating their player character for the world described below. When the character is complete, produce a compact summary of the immediately relevant setting wrapped in <local_context></local_context> tags and the full character sheet wrapped in <character></character> tags.

WORLD BIBLE:
%s`

const gameplayPrompt = `You are the narrator of an interactive text adventure. Describe the story as it unfolds in third person. You narrate and speak for NPCs, never for the player. Keep the world consistent with the bible and the character sheet below. Use the available tools for dice rolls and arithmetic instead of inventing outcomes.

WORLD BIBLE:
%s

PLAYER CHARACTER:
%s`

// ForPhase returns the system prompt for a phase, injecting canonical state
// where the phase calls for it. Unknown phases fall back to the gameplay
// prompt, matching how chatN phases beyond chat0 would behave.
func ForPhase(phase, bible, character string) string {
	switch {
	case phase == chat.PhaseWorld:
		return worldPrompt
	case phase == chat.PhaseCharacter:
		return fmt.Sprintf(characterPrompt, bible)
	default:
		return fmt.Sprintf(gameplayPrompt, bible, character)
	}
}

// SystemMessage wraps the phase prompt in a display-only system record.
func SystemMessage(phase, bible, character string) *chat.Message {
	msg := chat.NewMessage(chat.RoleSystem, ForPhase(phase, bible, character), phase)
	msg.Synthetic = true
	return msg
}
