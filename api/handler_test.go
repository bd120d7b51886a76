package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/licensing"
	"github.com/xraph/licensing/api"
	"github.com/xraph/licensing/license"
	"github.com/xraph/licensing/paymentledger"
	ledgermem "github.com/xraph/licensing/paymentledger/memory"
	"github.com/xraph/licensing/store/memory"
)

var (
	owner = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	alice = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	token = common.HexToAddress("0x00000000000000000000000000000000000000d4")
)

func newServer(t *testing.T) (*httptest.Server, *licensing.Engine) {
	t.Helper()
	ctx := context.Background()

	led := ledgermem.New(token)
	engine, err := licensing.New(memory.New(), paymentledger.NewRegistry(led), licensing.Params{
		Owner:         owner,
		Name:          "Intelligence License",
		Symbol:        "SIL",
		BaseURI:       "https://licenses.example.com/",
		MintPrice:     500,
		PaymentLedger: token,
	})
	require.NoError(t, err)
	require.NoError(t, engine.Start(ctx))
	t.Cleanup(func() { _ = engine.Stop() })

	require.NoError(t, led.Mint(alice, 1000))
	require.NoError(t, led.Approve(ctx, alice, engine.Address(), 1000))
	_, err = engine.Adopt(ctx, alice, license.Pair(true, false))
	require.NoError(t, err)
	_, err = engine.Adopt(ctx, alice, license.Pair(false, true))
	require.NoError(t, err)

	srv := httptest.NewServer(api.NewHandler(engine))
	t.Cleanup(srv.Close)
	return srv, engine
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url) //nolint:gosec,noctx // test server
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestConfig(t *testing.T) {
	srv, engine := newServer(t)

	var body map[string]any
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/config", &body))
	assert.Equal(t, engine.DeploymentID().String(), body["deployment_id"])
	assert.Equal(t, owner.Hex(), body["owner"])
	assert.Equal(t, "500", body["mint_price"])
	assert.Equal(t, "active", body["state"])
	assert.Equal(t, false, body["paused"])
}

func TestStats(t *testing.T) {
	srv, _ := newServer(t)

	var body map[string]any
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/stats", &body))
	assert.EqualValues(t, 2, body["total_issued"])
	assert.Equal(t, "1000", body["treasury_balance"])
}

func TestLicense(t *testing.T) {
	srv, _ := newServer(t)

	var body struct {
		ID         uint64             `json:"id"`
		Owner      string             `json:"owner"`
		Attributes license.Attributes `json:"attributes"`
		TokenURI   string             `json:"token_uri"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/licenses/2", &body))
	assert.Equal(t, uint64(2), body.ID)
	assert.Equal(t, alice.Hex(), body.Owner)
	assert.Equal(t, license.Pair(false, true), body.Attributes)
	assert.Equal(t, "https://licenses.example.com/2", body.TokenURI)

	var meta map[string]string
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/licenses/1/metadata", &meta))
	assert.Equal(t, "https://licenses.example.com/1", meta["token_uri"])
}

func TestHolderLicenses(t *testing.T) {
	srv, _ := newServer(t)

	var body struct {
		Balance    int      `json:"balance"`
		LicenseIDs []uint64 `json:"license_ids"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/holders/"+alice.Hex()+"/licenses", &body))
	assert.Equal(t, 2, body.Balance)
	assert.Equal(t, []uint64{1, 2}, body.LicenseIDs)

	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/holders/"+owner.Hex()+"/licenses", &body))
	assert.Equal(t, 0, body.Balance)
	assert.Empty(t, body.LicenseIDs)
}

func TestErrors(t *testing.T) {
	srv, _ := newServer(t)

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"unknown license", "/licenses/99", http.StatusNotFound},
		{"unknown metadata", "/licenses/99/metadata", http.StatusNotFound},
		{"license zero", "/licenses/0", http.StatusBadRequest},
		{"malformed id", "/licenses/abc", http.StatusBadRequest},
		{"malformed holder", "/holders/0xnothex/licenses", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p api.Problem
			assert.Equal(t, tt.status, getJSON(t, srv.URL+tt.path, &p))
			assert.Equal(t, tt.status, p.Status)
			assert.NotEmpty(t, p.Detail)
		})
	}
}
