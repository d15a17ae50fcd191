package core

import "github.com/pkg/errors"

// Failure taxonomy of the lifecycle controller. Persistence-level NotFound
// and invariant errors come from the storage and session packages and pass
// through untouched.
var (
	// ErrBusy trips the start guard: the channel is already generating.
	ErrBusy = errors.New("generation already in progress")

	// ErrDuplicateCompletion trips the one-shot completion latch. Logged and
	// otherwise ignored; the first completion already did all the work.
	ErrDuplicateCompletion = errors.New("duplicate completion notification")

	// ErrMalformedOutput means an expected tag was missing from the
	// generated text. Message persistence still happened; only the phase's
	// metadata update was skipped. The caller may re-prompt.
	ErrMalformedOutput = errors.New("malformed output")

	// ErrTransport wraps network and provider failures. The channel is back
	// at Idle and the already-persisted user prompt makes a retried start
	// cheap.
	ErrTransport = errors.New("transport failure")
)
