package metrics

import (
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerMetricsExportCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewLedger(reg)

	m.ObserveSettlement(ModeSingle, OutcomeSuccess, decimal.RequireFromString("20.50"))
	m.ObserveSettlement(ModeBatch, OutcomeSuccess, decimal.NewFromInt(10))
	m.ObserveSettlement(ModeBatch, OutcomeInvalidState, decimal.NewFromInt(99))
	m.ObserveReversal(OutcomeSuccess)
	m.AddMarkedPaid(3)
	m.AddMarkedPaid(0)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	got, err := fetchCounterValue(mfs, "consigna_settlements_total", map[string]string{"mode": "batch", "outcome": "invalid_state"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)

	got, err = fetchCounterValue(mfs, "consigna_settled_value_total", nil)
	require.NoError(t, err)
	assert.InDelta(t, 30.5, got, 1e-9)

	got, err = fetchCounterValue(mfs, "consigna_sale_reversals_total", map[string]string{"outcome": "success"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)

	got, err = fetchCounterValue(mfs, "consigna_payments_marked_paid_total", nil)
	require.NoError(t, err)
	assert.Equal(t, 3.0, got)
}

func TestNilLedgerIsNoop(t *testing.T) {
	var m *Ledger
	m.ObserveSettlement(ModeSingle, OutcomeSuccess, decimal.NewFromInt(1))
	m.ObserveReversal(OutcomeError)
	m.AddMarkedPaid(1)

	NewLedger(nil).AddMarkedPaid(1)
}

func fetchCounterValue(mfs []*dto.MetricFamily, name string, labels map[string]string) (float64, error) {
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if matchesLabels(metric.GetLabel(), labels) {
				return metric.GetCounter().GetValue(), nil
			}
		}
		return 0, fmt.Errorf("metric %q missing labels %v", name, labels)
	}
	return 0, fmt.Errorf("metric %q not found", name)
}

func matchesLabels(pairs []*dto.LabelPair, want map[string]string) bool {
	for name, value := range want {
		found := false
		for _, p := range pairs {
			if p.GetName() == name && p.GetValue() == value {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
