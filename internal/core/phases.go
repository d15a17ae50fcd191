package core

import (
	"github.com/pkg/errors"

	"github.com/rapturt9/interactive-worlds-sub000/internal/chat"
	"github.com/rapturt9/interactive-worlds-sub000/internal/session"
	"github.com/rapturt9/interactive-worlds-sub000/internal/storage"
	"github.com/rapturt9/interactive-worlds-sub000/internal/tags"
)

// Channel names. Every chatN phase shares the gameplay channel; world and
// character each have their own.
const (
	ChannelWorld     = "world"
	ChannelCharacter = "character"
	ChannelGameplay  = "gameplay"
)

// ChannelFor maps a phase to its channel.
func ChannelFor(phase string) string {
	switch phase {
	case chat.PhaseWorld:
		return ChannelWorld
	case chat.PhaseCharacter:
		return ChannelCharacter
	}
	return ChannelGameplay
}

// phaseSpec describes what happens when a phase completes: which tags the
// output must carry and how they land in the session, which phases feed the
// next phase's context, and the prompt auto-advance uses to kick it off.
type phaseSpec struct {
	parse     func(text string, cur *storage.SessionRecord) (storage.SessionPatch, error)
	copyFrom  []string
	successor string
	kickoff   string
}

var phaseSpecs = map[string]phaseSpec{
	chat.PhaseWorld: {
		parse:     parseWorld,
		successor: chat.PhaseCharacter,
		kickoff:   "Help me create my character for this world.",
	},
	chat.PhaseCharacter: {
		parse:     parseCharacter,
		copyFrom:  []string{chat.PhaseWorld},
		successor: chat.PhaseChat0,
		kickoff:   "Begin the adventure.",
	},
	chat.PhaseChat0: {
		copyFrom: []string{chat.PhaseWorld, chat.PhaseCharacter},
	},
}

func specFor(phase string) phaseSpec {
	if spec, ok := phaseSpecs[phase]; ok {
		return spec
	}
	// chatN beyond chat0: plain gameplay, context already in place.
	return phaseSpec{}
}

// parseWorld pulls the bible and the adventure title out of the world phase's
// final text. The original bible is written exactly once, alongside the first
// bible.
func parseWorld(text string, cur *storage.SessionRecord) (storage.SessionPatch, error) {
	var patch storage.SessionPatch

	bible, ok := tags.Extract(text, "bible")
	if !ok {
		return patch, errors.Wrap(ErrMalformedOutput, "world output carries no <bible> tag")
	}
	patch.BibleContent = &bible
	if cur.OriginalBibleContent == "" {
		patch.OriginalBibleContent = &bible
	}
	if name, ok := tags.Extract(text, "chat_name"); ok {
		patch.Title = &name
	}
	return patch, nil
}

// parseCharacter pulls the character sheet and its local context. The local
// context is folded into the working bible so snapshots and future prompts
// carry it; the original bible stays as generated.
func parseCharacter(text string, cur *storage.SessionRecord) (storage.SessionPatch, error) {
	var patch storage.SessionPatch

	character, ok := tags.Extract(text, "character")
	if !ok {
		return patch, errors.Wrap(ErrMalformedOutput, "character output carries no <character> tag")
	}
	patch.CharacterContent = &character
	if local, ok := tags.Extract(text, "local_context"); ok {
		merged := cur.BibleContent + "\n\nLOCAL CONTEXT:\n" + local
		patch.BibleContent = &merged
	}

	state := session.StateGameplay
	patch.CoarseState = &state
	return patch, nil
}
