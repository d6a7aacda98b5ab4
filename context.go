package fedescrow

import (
	"time"

	"github.com/tendermint/tendermint/libs/log"
)

// DefaultLogger is used for all batches that have not set anything
// themselves.
var DefaultLogger = log.NewNopLogger()

// BatchInfo carries the information the ordering layer agreed on for the
// batch that is being applied. Everything in here is identical on every
// guardian, so handlers may persist it. Handlers must never use it to decide
// about accepting an instruction.
type BatchInfo struct {
	height int64
	time   time.Time
	logger log.Logger
}

// NewBatchInfo returns the information about a batch at the given height,
// timestamped by the ordering layer.
func NewBatchInfo(height int64, t time.Time, logger log.Logger) BatchInfo {
	if logger == nil {
		logger = DefaultLogger
	}
	return BatchInfo{
		height: height,
		time:   t.UTC(),
		logger: logger,
	}
}

func (b BatchInfo) Height() int64 {
	return b.height
}

// Time returns the batch timestamp. It is informational only.
func (b BatchInfo) Time() time.Time {
	return b.time
}

func (b BatchInfo) Logger() log.Logger {
	if b.logger == nil {
		return DefaultLogger
	}
	return b.logger
}

// WithLogInfo accepts keyvalue pairs, and returns another
// BatchInfo like this, after passing all the keyvals to the
// Logger
func (b BatchInfo) WithLogInfo(keyvals ...interface{}) BatchInfo {
	b.logger = b.Logger().With(keyvals...)
	return b
}
