package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics aggregates the counters and gauges exposed by the agreement,
// distribution and governance engines.
type EngineMetrics struct {
	agreementsCreated prometheus.Counter
	repaymentsApplied prometheus.Counter
	repaymentVolume   prometheus.Counter
	missedPayments    prometheus.Counter
	defaults          prometheus.Counter
	distributions     prometheus.Counter
	remainderDust     *prometheus.GaugeVec
	proposalsExecuted *prometheus.CounterVec
	votesCast         prometheus.Counter
	requestDuration   *prometheus.HistogramVec
}

var (
	engineOnce     sync.Once
	engineRegistry *EngineMetrics
)

// Engine returns the process-wide metrics registry, registering the collectors
// on first use.
func Engine() *EngineMetrics {
	engineOnce.Do(func() {
		engineRegistry = &EngineMetrics{
			agreementsCreated: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "yield_agreements_created_total",
				Help: "Count of financing agreements admitted.",
			}),
			repaymentsApplied: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "yield_repayments_applied_total",
				Help: "Count of repayments applied to agreements.",
			}),
			repaymentVolume: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "yield_repayment_volume_total",
				Help: "Sum of repayment amounts in base units.",
			}),
			missedPayments: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "yield_missed_payments_total",
				Help: "Count of recorded missed payments across agreements.",
			}),
			defaults: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "yield_defaults_total",
				Help: "Count of agreements transitioned to the defaulted state.",
			}),
			distributions: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "yield_distributions_total",
				Help: "Count of completed pro-rata payout runs.",
			}),
			remainderDust: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "yield_distribution_remainder_dust",
				Help: "Rounding remainder assigned to the largest holder per agreement.",
			}, []string{"agreement"}),
			proposalsExecuted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "yield_proposals_executed_total",
				Help: "Count of executed governance proposals by kind.",
			}, []string{"kind"}),
			votesCast: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "yield_votes_cast_total",
				Help: "Count of governance ballots recorded.",
			}),
			requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "yield_gateway_request_seconds",
				Help:    "Gateway request latency by route and status.",
				Buckets: prometheus.DefBuckets,
			}, []string{"route", "status"}),
		}
		prometheus.MustRegister(
			engineRegistry.agreementsCreated,
			engineRegistry.repaymentsApplied,
			engineRegistry.repaymentVolume,
			engineRegistry.missedPayments,
			engineRegistry.defaults,
			engineRegistry.distributions,
			engineRegistry.remainderDust,
			engineRegistry.proposalsExecuted,
			engineRegistry.votesCast,
			engineRegistry.requestDuration,
		)
	})
	return engineRegistry
}

func (m *EngineMetrics) ObserveAgreementCreated() {
	if m == nil {
		return
	}
	m.agreementsCreated.Inc()
}

func (m *EngineMetrics) ObserveRepayment(amount float64) {
	if m == nil {
		return
	}
	m.repaymentsApplied.Inc()
	if amount > 0 {
		m.repaymentVolume.Add(amount)
	}
}

func (m *EngineMetrics) ObserveMissedPayment() {
	if m == nil {
		return
	}
	m.missedPayments.Inc()
}

func (m *EngineMetrics) ObserveDefault() {
	if m == nil {
		return
	}
	m.defaults.Inc()
}

func (m *EngineMetrics) ObserveDistribution(agreementID uint64, remainder float64) {
	if m == nil {
		return
	}
	m.distributions.Inc()
	m.remainderDust.WithLabelValues(strconv.FormatUint(agreementID, 10)).Set(remainder)
}

func (m *EngineMetrics) ObserveProposalExecuted(kind string) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	m.proposalsExecuted.WithLabelValues(kind).Inc()
}

func (m *EngineMetrics) ObserveVote() {
	if m == nil {
		return
	}
	m.votesCast.Inc()
}

func (m *EngineMetrics) ObserveRequest(route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(route, status).Observe(seconds)
}
