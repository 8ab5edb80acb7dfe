package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics counts the order engine's externally observable outcomes.
type EngineMetrics struct {
	ordersCreated     prometheus.Counter
	ordersCancelled   prometheus.Counter
	insufficientStock prometheus.Counter
	numberCollisions  prometheus.Counter
	txRetries         prometheus.Counter
}

// NewEngineMetrics registers the order engine counters on the provided registerer.
func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	if reg == nil {
		return &EngineMetrics{}
	}
	m := &EngineMetrics{
		ordersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Orders successfully created.",
		}),
		ordersCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orders_cancelled_total",
			Help: "Orders successfully cancelled.",
		}),
		insufficientStock: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orders_insufficient_stock_total",
			Help: "Order creations rejected for lack of available stock.",
		}),
		numberCollisions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "order_number_collisions_total",
			Help: "Order number allocations retried after a uniqueness conflict.",
		}),
		txRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "serializable_tx_retries_total",
			Help: "Serializable transactions retried after a store conflict.",
		}),
	}
	reg.MustRegister(m.ordersCreated, m.ordersCancelled, m.insufficientStock, m.numberCollisions, m.txRetries)
	return m
}

func (m *EngineMetrics) IncOrdersCreated() {
	if m == nil || m.ordersCreated == nil {
		return
	}
	m.ordersCreated.Inc()
}

func (m *EngineMetrics) IncOrdersCancelled() {
	if m == nil || m.ordersCancelled == nil {
		return
	}
	m.ordersCancelled.Inc()
}

func (m *EngineMetrics) IncInsufficientStock() {
	if m == nil || m.insufficientStock == nil {
		return
	}
	m.insufficientStock.Inc()
}

func (m *EngineMetrics) IncNumberCollisions() {
	if m == nil || m.numberCollisions == nil {
		return
	}
	m.numberCollisions.Inc()
}

func (m *EngineMetrics) IncTxRetries() {
	if m == nil || m.txRetries == nil {
		return
	}
	m.txRetries.Inc()
}
