package monitoring

import (
	"liveclass/internal/core/domain"
	"liveclass/internal/signal"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type PrometheusCollector struct {
	roomsActive        prometheus.Gauge
	participantsByRole *prometheus.GaugeVec
	messagesRouted     *prometheus.CounterVec
	roomsOpenedTotal   prometheus.Counter
}

func NewPrometheusCollector() *PrometheusCollector {
	return &PrometheusCollector{
		roomsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "liveclass_rooms_active",
			Help: "Number of rooms with at least one connected participant",
		}),

		participantsByRole: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "liveclass_participants_connected",
			Help: "Connected participants by role",
		}, []string{"role"}),

		messagesRouted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "liveclass_messages_routed_total",
			Help: "Signaling messages routed, by message type",
		}, []string{"type"}),

		roomsOpenedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "liveclass_rooms_opened_total",
			Help: "Total number of rooms opened since start",
		}),
	}
}

func (p *PrometheusCollector) ClientConnected(role domain.Role) {
	p.participantsByRole.WithLabelValues(string(role)).Inc()
}

func (p *PrometheusCollector) ClientDisconnected(role domain.Role) {
	p.participantsByRole.WithLabelValues(string(role)).Dec()
}

func (p *PrometheusCollector) MessageRouted(msgType signal.Type) {
	p.messagesRouted.WithLabelValues(string(msgType)).Inc()
}

func (p *PrometheusCollector) RoomOpened() {
	p.roomsActive.Inc()
	p.roomsOpenedTotal.Inc()
}

func (p *PrometheusCollector) RoomClosed() {
	p.roomsActive.Dec()
}
