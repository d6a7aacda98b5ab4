package escrow

import (
	"github.com/iov-one/fedescrow/errors"
)

// Escrow module reserves error codes 1000-1019.
var (
	ErrInvalidSecretCode                = errors.Register(1000, "invalid secret code")
	ErrUnauthorizedToDispute            = errors.Register(1001, "unauthorized to dispute")
	ErrEscrowNotDisputed                = errors.Register(1002, "escrow not disputed")
	ErrArbiterFeeExceedsMaximum         = errors.Register(1003, "arbiter fee exceeds maximum")
	ErrInvalidStateForClaimingEscrow    = errors.Register(1004, "invalid state for claiming escrow")
	ErrEscrowNotFound                   = errors.Register(1005, "escrow not found")
	ErrDuplicateEscrow                  = errors.Register(1006, "duplicate escrow")
	ErrInvalidSignature                 = errors.Register(1007, "invalid signature")
	ErrInvalidStateForInitiatingDispute = errors.Register(1008, "invalid state for initiating dispute")
	ErrArbiterFeeOutOfRange             = errors.Register(1009, "arbiter fee bps out of range")
	ErrInvalidInput                     = errors.Register(1010, "invalid escrow instruction")
	ErrInvalidAmount                    = errors.Register(1011, "invalid escrow amount")
)
