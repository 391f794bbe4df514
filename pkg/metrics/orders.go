package metrics

import "github.com/prometheus/client_golang/prometheus"

// OrderMetrics counts order state transitions and checkout rejections.
type OrderMetrics struct {
	transitions *prometheus.CounterVec
	rejections  *prometheus.CounterVec
}

// NewOrderMetrics registers the order counters on the provided registerer.
func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quickkart_order_transitions_total",
		Help: "Applied order status transitions.",
	}, []string{"from", "to"})
	rejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quickkart_checkout_rejections_total",
		Help: "Checkouts rejected by business rules, by error code.",
	}, []string{"code"})
	reg.MustRegister(transitions, rejections)
	return &OrderMetrics{transitions: transitions, rejections: rejections}
}

// ObserveTransition increments the transition counter. from is empty for newly created orders.
func (m *OrderMetrics) ObserveTransition(from, to string) {
	if m == nil || m.transitions == nil {
		return
	}
	if from == "" {
		from = "none"
	}
	m.transitions.WithLabelValues(from, normalizeLabel(to)).Inc()
}

func (m *OrderMetrics) ObserveRejection(code string) {
	if m == nil || m.rejections == nil {
		return
	}
	m.rejections.WithLabelValues(normalizeLabel(code)).Inc()
}
