package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	Connections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "linechat_connections",
		Help: "Current number of open client connections",
	})
	MessagesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "linechat_messages_total",
		Help: "Total number of chat messages posted",
	})
	AuthTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "linechat_auth_total",
		Help: "Authentication attempts by method and result",
	}, []string{"method", "result"})
	UnitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "linechat_units_total",
		Help: "Protocol units received by command",
	}, []string{"command"})
	UnitDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "linechat_unit_duration_seconds",
		Help:    "Time spent handling one received unit",
		Buckets: prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(Connections, MessagesTotal, AuthTotal, UnitsTotal, UnitDuration)
}

// Result labels an authentication outcome.
func Result(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
