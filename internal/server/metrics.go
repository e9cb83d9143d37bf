package server

import (
	"net/http"

	"depositdapp/internal/session"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metricsRegistry struct {
	registry          *prometheus.Registry
	transactionsTotal *prometheus.CounterVec
	refreshesTotal    *prometheus.CounterVec
	replaysTotal      *prometheus.CounterVec
	pending           prometheus.Gauge
	balances          *prometheus.GaugeVec
}

func newMetricsRegistry() *metricsRegistry {
	txs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "depositdapp_transactions_total",
		Help: "Transactions by operation and outcome",
	}, []string{"op", "status"})

	refreshes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "depositdapp_balance_refreshes_total",
		Help: "Balance refreshes by outcome",
	}, []string{"status"})

	replays := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "depositdapp_idempotent_replays_total",
		Help: "Responses served from the idempotency store",
	}, []string{"route"})

	pending := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "depositdapp_pending_transactions",
		Help: "1 while a tracked transaction awaits confirmation",
	})

	balances := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "depositdapp_balance",
		Help: "Last observed balance of the connected account",
	}, []string{"ledger"})

	r := prometheus.NewRegistry()
	r.MustRegister(txs, refreshes, replays, pending, balances)

	return &metricsRegistry{
		registry:          r,
		transactionsTotal: txs,
		refreshesTotal:    refreshes,
		replaysTotal:      replays,
		pending:           pending,
		balances:          balances,
	}
}

func (m *metricsRegistry) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// observe is subscribed to the wallet session.
func (m *metricsRegistry) observe(ev session.Event) {
	switch ev.Type {
	case session.EventConfirmed:
		m.transactionsTotal.WithLabelValues(ev.Op, "confirmed").Inc()
	case session.EventFailed:
		switch ev.Op {
		case "mint", "approve", "deposit":
			m.transactionsTotal.WithLabelValues(ev.Op, "failed").Inc()
		case "balances":
			m.refreshesTotal.WithLabelValues("failed").Inc()
		}
	case session.EventBalances:
		m.refreshesTotal.WithLabelValues("ok").Inc()
		fungible, _ := ev.State.Balances.Fungible.Float64()
		deposited, _ := ev.State.Balances.Deposited.Float64()
		m.balances.WithLabelValues("token").Set(fungible)
		m.balances.WithLabelValues("vault").Set(deposited)
		m.balances.WithLabelValues("collectible").Set(float64(ev.State.Balances.Collectibles))
	case session.EventPending:
		if ev.State.PendingTx != "" {
			m.pending.Set(1)
		} else {
			m.pending.Set(0)
		}
	case session.EventDisconnected:
		m.balances.Reset()
		m.pending.Set(0)
	}
}

func (m *metricsRegistry) incReplay(route string) {
	m.replaysTotal.WithLabelValues(route).Inc()
}
