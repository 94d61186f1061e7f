package client

import (
	errorsmod "cosmossdk.io/errors"
)

const codespace = "client"

var (
	// ErrCommitFailed wraps any non-zero commit result code other than a
	// sequence conflict; it carries the server's log string or numeric code.
	ErrCommitFailed = errorsmod.Register(codespace, 2, "transaction commit failed")

	// ErrSequenceMismatch is the sole retryable commit failure, matched
	// against the chain's exact log string.
	ErrSequenceMismatch = errorsmod.Register(codespace, 3, "sequence number does not match")

	// ErrNotFound marks the absence of a requested resource where the caller
	// requires presence.
	ErrNotFound = errorsmod.Register(codespace, 4, "not found")
)

// sequenceMismatchLog is the chain's verbatim log line for a rejected
// out-of-order commit. String-matched because the chain assigns it no
// distinct result code.
const sequenceMismatchLog = "sequence number does not match"
