package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/iov-one/fedescrow"
	"github.com/iov-one/fedescrow/api"
	"github.com/iov-one/fedescrow/app"
	"github.com/iov-one/fedescrow/client"
	"github.com/iov-one/fedescrow/crypto"
	"github.com/iov-one/fedescrow/errors"
	"github.com/iov-one/fedescrow/x/escrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	buyerKey   = crypto.PrivateKeyFromSeed([]byte("buyer"))
	sellerKey  = crypto.PrivateKeyFromSeed([]byte("seller"))
	arbiterKey = crypto.PrivateKeyFromSeed([]byte("arbiter"))
)

type testNet struct {
	api  string
	keys map[string]string
	// statusDown makes transaction status queries fail like an unreachable
	// guardian would.
	statusDown *atomic.Bool
}

func newTestNet(t *testing.T) testNet {
	t.Helper()
	state := fmt.Sprintf(`{
		"cash": [{"owner": %q, "amount": 5000}],
		"conf": {"escrow": {"deposit_fee": 2, "min_arbiter_fee_bps": 10, "max_arbiter_fee_bps": 1000}}
	}`, buyerKey.PublicKey().String())
	var opts fedescrow.Options
	require.NoError(t, json.Unmarshal([]byte(state), &opts))
	fed, err := app.NewMemFederation(1, app.Genesis{FederationID: "test", AppState: opts}, time.Now, app.AutoFlush())
	require.NoError(t, err)

	statusDown := new(atomic.Bool)
	router := api.NewRouter(fed, nil, nil)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if statusDown.Load() && r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/tx/") {
			http.Error(w, "bad gateway", http.StatusBadGateway)
			return
		}
		router.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	keys := make(map[string]string)
	for name, k := range map[string]*crypto.PrivateKey{"buyer": buyerKey, "seller": sellerKey, "arbiter": arbiterKey} {
		path := filepath.Join(dir, name+".key")
		require.NoError(t, ioutil.WriteFile(path, k.Bytes(), 0600))
		keys[name] = path
	}
	return testNet{api: srv.URL, keys: keys, statusDown: statusDown}
}

// run executes a command as the given party.
func (n testNet) run(t *testing.T, cmd func(input io.Reader, output io.Writer, args []string) error, party string, args ...string) ([]byte, error) {
	t.Helper()
	var output bytes.Buffer
	args = append([]string{"-api", n.api, "-key", n.keys[party], "-timeout", "5s"}, args...)
	err := cmd(nil, &output, args)
	return output.Bytes(), err
}

func TestCmdEscrowWithDispute(t *testing.T) {
	n := newTestNet(t)

	out, err := n.run(t, cmdCreate, "buyer",
		"-id", "trade-1",
		"-seller", sellerKey.PublicKey().String(),
		"-arbiter", arbiterKey.PublicKey().String(),
		"-amount", "1000",
		"-secret", "open sesame",
		"-max-fee-bps", "100",
	)
	require.NoError(t, err)
	var r client.Receipt
	require.NoError(t, json.Unmarshal(out, &r))
	assert.Equal(t, "trade-1", r.EscrowID)
	assert.Equal(t, uint64(1000), r.Amount)

	out, err = n.run(t, cmdBalance, "buyer")
	require.NoError(t, err)
	var balance struct {
		Balance uint64 `json:"balance"`
	}
	require.NoError(t, json.Unmarshal(out, &balance))
	assert.Equal(t, uint64(5000-1000-2), balance.Balance)

	_, err = n.run(t, cmdClaim, "seller", "-id", "trade-1", "-secret", "guess")
	assert.True(t, escrow.ErrInvalidSecretCode.Is(err), "got %+v", err)

	_, err = n.run(t, cmdDispute, "buyer", "-id", "trade-1")
	require.NoError(t, err)

	out, err = n.run(t, cmdInfo, "buyer", "-id", "trade-1")
	require.NoError(t, err)
	var info escrow.EscrowInfo
	require.NoError(t, json.Unmarshal(out, &info))
	assert.Equal(t, escrow.StateDisputedByBuyer, info.State)

	_, err = n.run(t, cmdArbiterDecision, "arbiter", "-id", "trade-1", "-decision", "seller", "-fee-bps", "100")
	require.NoError(t, err)

	_, err = n.run(t, cmdBuyerClaim, "buyer", "-id", "trade-1")
	assert.True(t, escrow.ErrInvalidStateForClaimingEscrow.Is(err), "got %+v", err)
	_, err = n.run(t, cmdSellerClaim, "arbiter", "-id", "trade-1")
	assert.True(t, escrow.ErrInvalidSignature.Is(err), "got %+v", err)

	out, err = n.run(t, cmdSellerClaim, "seller", "-id", "trade-1")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(out, &r))
	assert.Equal(t, uint64(990), r.Amount)

	out, err = n.run(t, cmdBalance, "buyer", "-pubkey", arbiterKey.PublicKey().String())
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(out, &balance))
	assert.Equal(t, uint64(10), balance.Balance)
}

func TestCmdMissingFlags(t *testing.T) {
	n := newTestNet(t)

	_, err := n.run(t, cmdClaim, "seller", "-secret", "x")
	assert.True(t, errors.ErrEmpty.Is(err), "got %+v", err)
	_, err = n.run(t, cmdCreate, "buyer", "-secret", "x", "-arbiter", arbiterKey.PublicKey().String())
	assert.True(t, errors.ErrEmpty.Is(err), "got %+v", err)
	_, err = n.run(t, cmdArbiterDecision, "arbiter", "-id", "trade-1", "-decision", "nobody")
	assert.True(t, escrow.ErrInvalidInput.Is(err), "got %+v", err)
}

func TestCmdBpsOutOfRange(t *testing.T) {
	n := newTestNet(t)

	// 2^32+10 must not wrap around to 10.
	_, err := n.run(t, cmdCreate, "buyer",
		"-id", "trade-1",
		"-seller", sellerKey.PublicKey().String(),
		"-arbiter", arbiterKey.PublicKey().String(),
		"-amount", "1000",
		"-secret", "open sesame",
		"-max-fee-bps", "4294967306",
	)
	assert.True(t, errors.ErrInput.Is(err), "got %+v", err)
	_, err = n.run(t, cmdInfo, "buyer", "-id", "trade-1")
	assert.True(t, escrow.ErrEscrowNotFound.Is(err), "got %+v", err)

	_, err = n.run(t, cmdArbiterDecision, "arbiter", "-id", "trade-1", "-decision", "seller", "-fee-bps", "4294967396")
	assert.True(t, errors.ErrInput.Is(err), "got %+v", err)
}

func TestCmdPrintsPendingReceipt(t *testing.T) {
	n := newTestNet(t)
	n.statusDown.Store(true)

	out, err := n.run(t, cmdCreate, "buyer",
		"-id", "trade-1",
		"-seller", sellerKey.PublicKey().String(),
		"-arbiter", arbiterKey.PublicKey().String(),
		"-amount", "1000",
		"-secret", "open sesame",
		"-max-fee-bps", "100",
	)
	assert.True(t, errors.ErrNetwork.Is(err), "got %+v", err)
	var r client.Receipt
	require.NoError(t, json.Unmarshal(out, &r), string(out))
	assert.NotEmpty(t, r.OperationID)
	assert.Len(t, r.TxID, 64)
	assert.Equal(t, "trade-1", r.EscrowID)
	assert.Equal(t, int64(0), r.Height)

	n.statusDown.Store(false)
	out, err = n.run(t, cmdTxStatus, "buyer", "-tx", r.TxID)
	require.NoError(t, err)
	var status app.TxStatus
	require.NoError(t, json.Unmarshal(out, &status))
	assert.Equal(t, app.StatusAccepted, status.Status)
	assert.Equal(t, int64(1), status.Height)
}

func TestCmdUnreachable(t *testing.T) {
	n := newTestNet(t)
	n.api = "http://127.0.0.1:1"

	_, err := n.run(t, cmdInfo, "buyer", "-id", "trade-1")
	assert.True(t, errors.ErrNetwork.Is(err), "got %+v", err)

	var stderr bytes.Buffer
	writeErr(&stderr, err)
	var e cliError
	require.NoError(t, json.Unmarshal(stderr.Bytes(), &e))
	assert.Equal(t, errors.ErrNetwork.Code(), e.Code)
	assert.NotEmpty(t, e.Error)
}

func TestCmdKeygen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "new.key")

	var output bytes.Buffer
	require.NoError(t, cmdKeygen(nil, &output, []string{"-key", path}))
	var generated map[string]crypto.PublicKey
	require.NoError(t, json.Unmarshal(output.Bytes(), &generated))

	output.Reset()
	require.NoError(t, cmdPubkey(nil, &output, []string{"-key", path}))
	var loaded map[string]crypto.PublicKey
	require.NoError(t, json.Unmarshal(output.Bytes(), &loaded))
	assert.Equal(t, generated["pubkey"], loaded["pubkey"])

	// An existing key is never overwritten.
	assert.Error(t, cmdKeygen(nil, &output, []string{"-key", path}))
}
