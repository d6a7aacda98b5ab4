package cash

import (
	"github.com/iov-one/fedescrow"
)

// Handler processes cash inputs and outputs.
type Handler struct {
	ctrl Controller
}

func NewHandler(ctrl Controller) Handler {
	return Handler{ctrl: ctrl}
}

// ProcessInput burns the input amount. The owner must sign the transaction.
func (h Handler) ProcessInput(info fedescrow.BatchInfo, db fedescrow.KVStore, in *Input) (fedescrow.InputMeta, error) {
	if err := in.Validate(); err != nil {
		return fedescrow.InputMeta{}, err
	}
	if err := h.ctrl.Burn(db, in.Owner, in.Amount); err != nil {
		return fedescrow.InputMeta{}, err
	}
	return fedescrow.InputMeta{
		ItemAmount: fedescrow.ItemAmount{Amount: in.Amount},
		Pubkey:     in.Owner,
	}, nil
}

// ProcessOutput mints the output amount.
func (h Handler) ProcessOutput(info fedescrow.BatchInfo, db fedescrow.KVStore, out *Output) (fedescrow.ItemAmount, error) {
	if err := out.Validate(); err != nil {
		return fedescrow.ItemAmount{}, err
	}
	if err := h.ctrl.Mint(db, out.Owner, out.Amount); err != nil {
		return fedescrow.ItemAmount{}, err
	}
	return fedescrow.ItemAmount{Amount: out.Amount}, nil
}
