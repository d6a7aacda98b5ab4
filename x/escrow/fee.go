package escrow

import (
	"math"

	"github.com/holiman/uint256"
	"github.com/iov-one/fedescrow/errors"
)

// ValidateFeeBps fails with ErrArbiterFeeOutOfRange when bps is outside of
// the configured range (inclusive).
func ValidateFeeBps(c Config, bps uint32) error {
	if bps < c.MinArbiterFeeBps || bps > c.MaxArbiterFeeBps {
		return errors.Wrapf(ErrArbiterFeeOutOfRange, "%d not in [%d, %d]",
			bps, c.MinArbiterFeeBps, c.MaxArbiterFeeBps)
	}
	return nil
}

// ComputeFee returns floor(amount * bps / 10000). The product is computed in
// 256 bits, so it never overflows.
func ComputeFee(amount uint64, bps uint32) uint64 {
	fee := new(uint256.Int).Mul(uint256.NewInt(amount), uint256.NewInt(uint64(bps)))
	fee.Div(fee, uint256.NewInt(bpsDenominator))
	if !fee.IsUint64() {
		return math.MaxUint64
	}
	return fee.Uint64()
}
