package client

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"

	"github.com/iov-one/fedescrow/api"
	"github.com/iov-one/fedescrow/app"
	"github.com/iov-one/fedescrow/crypto"
	"github.com/iov-one/fedescrow/errors"
	"github.com/iov-one/fedescrow/x/escrow"
)

// HTTPTransport talks to a guardian API over HTTP.
type HTTPTransport struct {
	apiURL string
	cli    *http.Client
}

var _ Transport = (*HTTPTransport)(nil)

// NewHTTPTransport returns a transport using the given client, or the
// default one if nil.
func NewHTTPTransport(apiURL string, cli *http.Client) *HTTPTransport {
	if cli == nil {
		cli = http.DefaultClient
	}
	return &HTTPTransport{
		apiURL: strings.TrimRight(apiURL, "/"),
		cli:    cli,
	}
}

func (t *HTTPTransport) SubmitTx(ctx context.Context, tx *app.Tx) (string, error) {
	raw, err := tx.Encode()
	if err != nil {
		return "", err
	}
	var resp api.SubmitTxResponse
	req := api.SubmitTxRequest{Tx: hex.EncodeToString(raw)}
	if err := t.do(ctx, http.MethodPost, "/tx", req, &resp); err != nil {
		return "", err
	}
	return resp.TxID, nil
}

func (t *HTTPTransport) TxStatus(ctx context.Context, txID string) (*app.TxStatus, error) {
	var status app.TxStatus
	if err := t.do(ctx, http.MethodGet, "/tx/"+url.PathEscape(txID), nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (t *HTTPTransport) EscrowInfo(ctx context.Context, escrowID string) (*escrow.EscrowInfo, error) {
	var info escrow.EscrowInfo
	if err := t.do(ctx, http.MethodGet, "/escrow/"+url.PathEscape(escrowID), nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (t *HTTPTransport) EscrowConfig(ctx context.Context) (escrow.Config, error) {
	var conf escrow.Config
	err := t.do(ctx, http.MethodGet, "/config", nil, &conf)
	return conf, err
}

func (t *HTTPTransport) Balance(ctx context.Context, pubkey []byte) (uint64, error) {
	var resp api.BalanceResponse
	path := "/balance/" + crypto.PublicKey(pubkey).String()
	if err := t.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return 0, err
	}
	return resp.Balance, nil
}

// do sends a request with an optional JSON body. A response with an error
// code is turned back into the registered error. Anything else that goes
// wrong on the way is an ErrNetwork.
func (t *HTTPTransport) do(ctx context.Context, method, path string, payload, dest interface{}) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return errors.Wrapf(errors.ErrInput, "cannot encode request: %s", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, t.apiURL+path, body)
	if err != nil {
		return errors.Wrapf(errors.ErrInput, "create http request: %s", err)
	}
	req = req.WithContext(ctx)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.cli.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.Wrapf(errors.ErrNetwork, "%s %s: %s", method, path, err)
	}
	defer resp.Body.Close()

	b, err := ioutil.ReadAll(io.LimitReader(resp.Body, 1e6))
	if err != nil {
		return errors.Wrapf(errors.ErrNetwork, "read response: %s", err)
	}
	if resp.StatusCode >= 300 {
		var e api.ErrorResponse
		if err := json.Unmarshal(b, &e); err != nil || e.Code == errors.SuccessCode {
			return errors.Wrapf(errors.ErrNetwork, "bad response: %d %s", resp.StatusCode, string(b))
		}
		return errors.FromCode(e.Code, e.Error)
	}
	if err := json.Unmarshal(b, dest); err != nil {
		return errors.Wrapf(errors.ErrNetwork, "decode response: %s", err)
	}
	return nil
}
