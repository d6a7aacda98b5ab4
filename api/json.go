package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/iov-one/fedescrow/crypto"
	"github.com/iov-one/fedescrow/errors"
	"github.com/iov-one/fedescrow/x/escrow"
	"github.com/tendermint/tendermint/libs/log"
)

// SubmitTxRequest carries a hex encoded transaction.
type SubmitTxRequest struct {
	Tx string `json:"tx"`
}

type SubmitTxResponse struct {
	TxID string `json:"tx_id"`
}

type BalanceResponse struct {
	Pubkey  crypto.PublicKey `json:"pubkey"`
	Balance uint64           `json:"balance"`
}

type HealthResponse struct {
	Height int64 `json:"height"`
}

// ErrorResponse is returned with any non 2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  uint32 `json:"code"`
}

const maxRequestSize = 1 << 20

// JSONResp write content as JSON encoded response.
func JSONResp(w http.ResponseWriter, logger log.Logger, code int, content interface{}) {
	b, err := json.MarshalIndent(content, "", "\t")
	if err != nil {
		logger.Error("cannot JSON serialize response", "err", err)
		code = http.StatusInternalServerError
		b = []byte(`{"error":"internal error","code":1}`)
	}
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(code)
	_, _ = w.Write(b)
}

// JSONErr writes the error code and the client safe message of err. The
// HTTP status is derived from the error kind.
func JSONErr(w http.ResponseWriter, logger log.Logger, err error) {
	code, msg := errors.Info(err, false)
	status := httpStatus(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed", "err", err)
	}
	JSONResp(w, logger, status, ErrorResponse{Error: msg, Code: code})
}

func httpStatus(err error) int {
	switch {
	case errors.ErrNotFound.Is(err), escrow.ErrEscrowNotFound.Is(err):
		return http.StatusNotFound
	case errors.ErrNetwork.Is(err):
		return http.StatusServiceUnavailable
	case errors.ErrDatabase.Is(err), errors.ErrPanic.Is(err), errors.ErrHuman.Is(err):
		return http.StatusInternalServerError
	case errors.Code(err) == errors.InternalCode:
		return http.StatusInternalServerError
	}
	return http.StatusBadRequest
}

func decodeJSON(r *http.Request, dest interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestSize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return errors.Wrapf(errors.ErrInput, "cannot decode request: %s", err)
	}
	return nil
}
