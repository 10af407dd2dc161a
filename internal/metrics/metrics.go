package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// Settlement outcomes used as label values.
const (
	OutcomeSuccess      = "success"
	OutcomeNotFound     = "not_found"
	OutcomeInvalidState = "invalid_state"
	OutcomeValidation   = "validation"
	OutcomeError        = "error"
)

// Settlement modes used as label values.
const (
	ModeSingle = "single"
	ModeBatch  = "batch"
)

// Ledger records settlement and payment activity.
type Ledger struct {
	settlements *prometheus.CounterVec
	reversals   *prometheus.CounterVec
	markedPaid  prometheus.Counter
	settled     prometheus.Counter
}

// NewLedger registers the ledger metrics on the provided registerer.
// A nil registerer yields a no-op collector.
func NewLedger(reg prometheus.Registerer) *Ledger {
	if reg == nil {
		return &Ledger{}
	}
	settlements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "consigna_settlements_total",
		Help: "Settlement attempts by mode and outcome.",
	}, []string{"mode", "outcome"})
	reversals := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "consigna_sale_reversals_total",
		Help: "Sale reversal attempts by outcome.",
	}, []string{"outcome"})
	markedPaid := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consigna_payments_marked_paid_total",
		Help: "Payments flipped to paid.",
	})
	settled := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consigna_settled_value_total",
		Help: "Sum of sold-for values of successful settlements.",
	})
	reg.MustRegister(settlements, reversals, markedPaid, settled)
	return &Ledger{
		settlements: settlements,
		reversals:   reversals,
		markedPaid:  markedPaid,
		settled:     settled,
	}
}

// ObserveSettlement counts one settlement attempt.
func (l *Ledger) ObserveSettlement(mode, outcome string, soldFor decimal.Decimal) {
	if l == nil || l.settlements == nil {
		return
	}
	l.settlements.WithLabelValues(normalizeLabel(mode), normalizeLabel(outcome)).Inc()
	if outcome == OutcomeSuccess {
		l.settled.Add(soldFor.InexactFloat64())
	}
}

// ObserveReversal counts one reversal attempt.
func (l *Ledger) ObserveReversal(outcome string) {
	if l == nil || l.reversals == nil {
		return
	}
	l.reversals.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// AddMarkedPaid counts payments flipped to paid.
func (l *Ledger) AddMarkedPaid(n int64) {
	if l == nil || l.markedPaid == nil || n <= 0 {
		return
	}
	l.markedPaid.Add(float64(n))
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
