package actors

import (
	"github.com/filecoin-project/go-state-types/exitcode"
)

// Domain exit codes. System-level conditions (bad sender, insufficient
// balance for a value transfer, unknown method) use the codes from
// go-state-types/exitcode directly.
const (
	// ExitUnauthorized: the authorization gate denied execution under the
	// acting identity (self-only delegation invoked by a third party).
	ExitUnauthorized = exitcode.FirstActorSpecificExitCode + iota

	// ExitDispatchFailure: a collaborator rejected the operation
	// (insufficient allowance or liquidity, unregistered pair, output
	// below minimum).
	ExitDispatchFailure

	// ExitInvalidArgument: structurally bad input (zero amount, identical
	// token pair, duplicate pair registration, negative amount).
	ExitInvalidArgument
)
