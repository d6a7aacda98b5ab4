package app

import (
	"github.com/iov-one/fedescrow/errors"
)

// ErrDivergence is returned when guardians applying the same batch reach
// different verdicts. It is fatal for a federation.
var ErrDivergence = errors.Register(1200, "guardians diverged")
