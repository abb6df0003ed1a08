package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsHandlerExposesCollectors(t *testing.T) {
	called := 0
	AddPreCollectFn(func() {
		called++
		SetPendingSignature(true)
	})

	ObserveApiCall("/api/v1/chains/{chainId}", http.StatusOK, 20*time.Millisecond)
	ObserveDepositVerification("valid")
	ObserveBatchItem("success")
	SetQueue("1", "withdrawal", 3, 1)

	rec := httptest.NewRecorder()
	GetMetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	text := string(body)

	assert.Equal(t, 1, called)
	assert.Contains(t, text, `dashboard_api_calls_total{code="OK",route="/api/v1/chains/{chainId}"} 1`)
	assert.Contains(t, text, `dashboard_deposit_verifications_total{outcome="valid"} 1`)
	assert.Contains(t, text, `dashboard_batch_items_total{status="success"} 1`)
	assert.Contains(t, text, `dashboard_request_queue_length{chain_id="1",kind="withdrawal"} 3`)
	assert.Contains(t, text, "dashboard_offline_pending_signatures 1")
}
