package metrics

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	apiCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dashboard",
		Name:      "api_calls_total",
		Help:      "Number of API calls by route and status code.",
	}, []string{"route", "code"})

	apiCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "dashboard",
		Name:      "api_call_duration_seconds",
		Help:      "API call duration by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})

	depositVerifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dashboard",
		Name:      "deposit_verifications_total",
		Help:      "Deposit file verifications by outcome.",
	}, []string{"outcome"})

	batchItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dashboard",
		Name:      "batch_items_total",
		Help:      "Batch items that reached a terminal status.",
	}, []string{"status"})

	queueFee = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "dashboard",
		Name:      "request_queue_fee_wei",
		Help:      "Last observed request fee per chain and request kind.",
	}, []string{"chain_id", "kind"})

	queueLength = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "dashboard",
		Name:      "request_queue_length",
		Help:      "Last observed request queue length per chain and request kind.",
	}, []string{"chain_id", "kind"})

	pendingSignatures = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "dashboard",
		Name:      "offline_pending_signatures",
		Help:      "1 while an offline signature request is outstanding.",
	})
)

type Metrics struct {
	mutex         sync.Mutex
	preCollectFns []func()
}

type MetricsHandler struct {
	handler         http.Handler
	lastCollectTime time.Time
}

var metrics *Metrics = &Metrics{
	preCollectFns: []func(){},
}

// AddPreCollectFn registers a callback that refreshes gauges before a scrape.
func AddPreCollectFn(fn func()) {
	metrics.mutex.Lock()
	defer metrics.mutex.Unlock()
	metrics.preCollectFns = append(metrics.preCollectFns, fn)
}

func runPreCollectFns() {
	metrics.mutex.Lock()
	fns := make([]func(), len(metrics.preCollectFns))
	copy(fns, metrics.preCollectFns)
	metrics.mutex.Unlock()

	for _, fn := range fns {
		fn()
	}
}

func ObserveApiCall(route string, code int, duration time.Duration) {
	apiCalls.WithLabelValues(route, http.StatusText(code)).Inc()
	apiCallDuration.WithLabelValues(route).Observe(duration.Seconds())
}

func ObserveDepositVerification(outcome string) {
	depositVerifications.WithLabelValues(outcome).Inc()
}

func ObserveBatchItem(status string) {
	batchItems.WithLabelValues(status).Inc()
}

func SetQueue(chainID string, kind string, length uint64, feeWei float64) {
	queueLength.WithLabelValues(chainID, kind).Set(float64(length))
	queueFee.WithLabelValues(chainID, kind).Set(feeWei)
}

func SetPendingSignature(pending bool) {
	if pending {
		pendingSignatures.Set(1)
	} else {
		pendingSignatures.Set(0)
	}
}

func StartMetricsServer(logger logrus.FieldLogger, host string, port string) error {
	if host == "" {
		host = "127.0.0.1"
	}
	if port == "" {
		port = "9090"
	}

	srv := &http.Server{
		Addr:              host + ":" + port,
		Handler:           GetMetricsHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	listener, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return err
	}

	go func() {
		logger.Infof("metrics server listening on %v", srv.Addr)
		if err := srv.Serve(listener); err != nil {
			logger.WithError(err).Fatal("Error serving metrics")
		}
	}()

	return nil
}

func GetMetricsHandler() http.Handler {
	return &MetricsHandler{
		handler: promhttp.Handler(),
	}
}

func (mh *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if time.Since(mh.lastCollectTime) > 1*time.Second {
		runPreCollectFns()
		mh.lastCollectTime = time.Now()
	}

	mh.handler.ServeHTTP(w, r)
}
