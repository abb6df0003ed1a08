package validators

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	apiv1 "github.com/attestantio/go-eth2-client/api/v1"
	"github.com/attestantio/go-eth2-client/spec/electra"
	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newValidatorApi(t *testing.T, requests *int32) *httptest.Server {
	t.Helper()

	responses := []*ValidatorResponse{
		{
			Validator: testRawValidator(10, 0x02, 64_000_000_000, apiv1.ValidatorStateActiveOngoing),
			PendingDeposits: []*electra.PendingDeposit{
				{
					Pubkey:                phase0.BLSPubKey{0xa0},
					WithdrawalCredentials: testCredentials(0x02),
					Amount:                2_000_000_000,
				},
			},
			PendingPartialWithdrawals: []*electra.PendingPartialWithdrawal{},
		},
		{
			Validator:                 testRawValidator(11, 0x01, 32_000_000_000, apiv1.ValidatorStatePendingQueued),
			PendingDeposits:           []*electra.PendingDeposit{},
			PendingPartialWithdrawals: []*electra.PendingPartialWithdrawal{},
		},
	}
	body, err := json.Marshal(responses)
	require.NoError(t, err)

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(requests, 1)

		assert.Equal(t, "/validators", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))

		switch strings.ToLower(r.URL.Query().Get("address")) {
		case strings.ToLower(testWithdrawalAddress):
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(body)
		case "0x0000000000000000000000000000000000000bad":
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("backend down"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestClientGetNormalizedValidators(t *testing.T) {
	var requests int32
	server := newValidatorApi(t, &requests)
	defer server.Close()

	logger, _ := test.NewNullLogger()
	client, err := NewClient(ClientConfig{
		Endpoint:  server.URL + "/",
		Headers:   map[string]string{"X-Api-Key": "secret"},
		CacheSize: 4 * 1024 * 1024,
		CacheTTL:  time.Minute,
	}, logger)
	require.NoError(t, err)

	validators, err := client.GetNormalizedValidators(context.Background(), common.HexToAddress(testWithdrawalAddress))
	require.NoError(t, err)
	require.Len(t, validators, 2)
	assert.Equal(t, uint64(10), validators[0].Index)
	assert.Equal(t, "2", validators[0].PendingDeposits.String())
	assert.Equal(t, "02", validators[0].CredentialType)
	assert.Equal(t, "Pending", validators[1].StatusLabel)

	// second lookup is served from the cache
	_, err = client.GetNormalizedValidators(context.Background(), common.HexToAddress(testWithdrawalAddress))
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&requests))
}

func TestClientErrors(t *testing.T) {
	var requests int32
	server := newValidatorApi(t, &requests)
	defer server.Close()

	logger, _ := test.NewNullLogger()
	client, err := NewClient(ClientConfig{
		Endpoint: server.URL,
		Headers:  map[string]string{"X-Api-Key": "secret"},
	}, logger)
	require.NoError(t, err)

	validators, err := client.GetNormalizedValidators(context.Background(), common.HexToAddress("0x0000000000000000000000000000000000000001"))
	require.NoError(t, err)
	assert.Empty(t, validators)

	_, err = client.GetValidators(context.Background(), common.HexToAddress("0x0000000000000000000000000000000000000bad"))
	assert.ErrorContains(t, err, "backend down")

	_, err = NewClient(ClientConfig{}, logger)
	assert.Error(t, err)
}
