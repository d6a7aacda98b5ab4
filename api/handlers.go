package api

import (
	"context"
	"encoding/hex"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/iov-one/fedescrow/app"
	"github.com/iov-one/fedescrow/crypto"
	"github.com/iov-one/fedescrow/errors"
	"github.com/iov-one/fedescrow/x/escrow"
	"github.com/tendermint/tendermint/libs/log"
)

// Backend is the federation as seen by a single guardian.
type Backend interface {
	SubmitTx(ctx context.Context, tx *app.Tx) (string, error)
	TxStatus(ctx context.Context, txID string) (*app.TxStatus, error)
	EscrowInfo(ctx context.Context, escrowID string) (*escrow.EscrowInfo, error)
	EscrowConfig(ctx context.Context) (escrow.Config, error)
	Balance(ctx context.Context, pubkey []byte) (uint64, error)
	Height() int64
}

var _ Backend = (*app.LocalFederation)(nil)

type SubmitTxHandler struct {
	Backend Backend
	Logger  log.Logger
}

func (h *SubmitTxHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req SubmitTxRequest
	if err := decodeJSON(r, &req); err != nil {
		JSONErr(w, h.Logger, err)
		return
	}
	raw, err := hex.DecodeString(req.Tx)
	if err != nil {
		JSONErr(w, h.Logger, errors.Wrapf(errors.ErrInput, "transaction must be hex encoded: %s", err))
		return
	}
	tx, err := app.DecodeTx(raw)
	if err != nil {
		JSONErr(w, h.Logger, err)
		return
	}
	id, err := h.Backend.SubmitTx(r.Context(), tx)
	if err != nil {
		JSONErr(w, h.Logger, err)
		return
	}
	JSONResp(w, h.Logger, http.StatusAccepted, SubmitTxResponse{TxID: id})
}

type TxStatusHandler struct {
	Backend Backend
	Logger  log.Logger
}

func (h *TxStatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := hex.DecodeString(id); err != nil || len(id) != 2*crypto.DigestSize {
		JSONErr(w, h.Logger, errors.Wrap(errors.ErrInput, "transaction id must be a hex encoded sha256"))
		return
	}
	status, err := h.Backend.TxStatus(r.Context(), id)
	if err != nil {
		JSONErr(w, h.Logger, err)
		return
	}
	JSONResp(w, h.Logger, http.StatusOK, status)
}

type EscrowHandler struct {
	Backend Backend
	Logger  log.Logger
}

func (h *EscrowHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := escrow.ValidateEscrowID(id); err != nil {
		JSONErr(w, h.Logger, err)
		return
	}
	info, err := h.Backend.EscrowInfo(r.Context(), id)
	if err != nil {
		JSONErr(w, h.Logger, err)
		return
	}
	JSONResp(w, h.Logger, http.StatusOK, info)
}

type BalanceHandler struct {
	Backend Backend
	Logger  log.Logger
}

func (h *BalanceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	pk, err := crypto.ParsePublicKey(chi.URLParam(r, "pubkey"))
	if err != nil {
		JSONErr(w, h.Logger, err)
		return
	}
	balance, err := h.Backend.Balance(r.Context(), pk)
	if err != nil {
		JSONErr(w, h.Logger, err)
		return
	}
	JSONResp(w, h.Logger, http.StatusOK, BalanceResponse{Pubkey: pk, Balance: balance})
}

type ConfigHandler struct {
	Backend Backend
	Logger  log.Logger
}

func (h *ConfigHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conf, err := h.Backend.EscrowConfig(r.Context())
	if err != nil {
		JSONErr(w, h.Logger, err)
		return
	}
	JSONResp(w, h.Logger, http.StatusOK, conf)
}

type HealthHandler struct {
	Backend Backend
	Logger  log.Logger
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	JSONResp(w, h.Logger, http.StatusOK, HealthResponse{Height: h.Backend.Height()})
}

// notFoundHandler keeps the JSON error format for unknown paths.
func notFoundHandler(logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		JSONErr(w, logger, errors.Wrapf(errors.ErrNotFound, "path %s", r.URL.Path))
	}
}
