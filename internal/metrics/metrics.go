package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GenerationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "photoshoot_generations_total",
		Help: "Generation attempts by terminal status",
	}, []string{"status"})

	SettlementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "star_settlements_total",
		Help: "Stars settlement notifications by outcome",
	}, []string{"result"})

	ProviderLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "photoshoot_provider_request_duration_seconds",
		Help:    "Wall time of one provider generateContent call",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
	})
)
