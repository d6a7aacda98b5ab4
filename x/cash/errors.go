package cash

import (
	"github.com/iov-one/fedescrow/errors"
)

// Cash module reserves error codes 1100-1109.
var (
	ErrInvalidOwner  = errors.Register(1100, "invalid owner")
	ErrInvalidAmount = errors.Register(1101, "invalid cash amount")
)
