package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce            sync.Once
	httpDurationHistogram   *prometheus.HistogramVec
	webhookEventCounter     *prometheus.CounterVec
	duplicateLedgerCounter  *prometheus.CounterVec
	idempotencyCounter      *prometheus.CounterVec
	workerRunCounter        *prometheus.CounterVec
	reconciliationFixCount  prometheus.Counter
	expiredCreditsCounter   prometheus.Counter
	voucherRedemptionsTotal *prometheus.CounterVec
)

// Init registers all Prometheus collectors.
func Init() {
	registerOnce.Do(func() {
		httpDurationHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"})

		webhookEventCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_webhook_events_total",
			Help: "Inbound gateway event outcomes",
		}, []string{"event_type", "outcome"})

		duplicateLedgerCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_duplicate_entries_total",
			Help: "Ledger appends rejected by uniqueness constraints and treated as no-ops",
		}, []string{"entry_type"})

		idempotencyCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "idempotency_events_total",
			Help: "Idempotency middleware outcomes",
		}, []string{"outcome"})

		workerRunCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_runs_total",
			Help: "Background worker run outcomes",
		}, []string{"worker", "result"})

		reconciliationFixCount = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reconciliation_fixes_total",
			Help: "Drift repairs applied by reconciliation passes",
		})

		expiredCreditsCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "user_credits_expired_total",
			Help: "Credit grants marked fully used by the expiry maintenance loop",
		})

		voucherRedemptionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voucher_redemptions_total",
			Help: "Voucher apply outcomes",
		}, []string{"outcome"})

		prometheus.MustRegister(
			httpDurationHistogram,
			webhookEventCounter,
			duplicateLedgerCounter,
			idempotencyCounter,
			workerRunCounter,
			reconciliationFixCount,
			expiredCreditsCounter,
			voucherRedemptionsTotal,
		)
	})
}

func ObserveHTTP(method, path string, status int, duration time.Duration) {
	if httpDurationHistogram == nil {
		return
	}
	httpDurationHistogram.WithLabelValues(method, path, strconv.Itoa(status)).Observe(duration.Seconds())
}

func IncrementWebhookEvent(eventType, outcome string) {
	if webhookEventCounter == nil {
		return
	}
	webhookEventCounter.WithLabelValues(eventType, outcome).Inc()
}

func IncrementDuplicateLedgerEntry(entryType string) {
	if duplicateLedgerCounter == nil {
		return
	}
	duplicateLedgerCounter.WithLabelValues(entryType).Inc()
}

func IncrementIdempotencyEvent(outcome string) {
	if idempotencyCounter == nil {
		return
	}
	idempotencyCounter.WithLabelValues(outcome).Inc()
}

func IncrementWorkerRun(worker, result string) {
	if workerRunCounter == nil {
		return
	}
	workerRunCounter.WithLabelValues(worker, result).Inc()
}

func AddReconciliationFixes(n int) {
	if reconciliationFixCount == nil || n <= 0 {
		return
	}
	reconciliationFixCount.Add(float64(n))
}

func AddExpiredCredits(n int64) {
	if expiredCreditsCounter == nil || n <= 0 {
		return
	}
	expiredCreditsCounter.Add(float64(n))
}

func IncrementVoucherRedemption(outcome string) {
	if voucherRedemptionsTotal == nil {
		return
	}
	voucherRedemptionsTotal.WithLabelValues(outcome).Inc()
}
