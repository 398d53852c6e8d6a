package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "interview_sessions_active",
		Help: "Currently open interview channels",
	})

	SessionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "interview_sessions_total",
		Help: "Interview channels opened",
	})

	AdmissionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_admission_rejected_total",
		Help: "Channels refused before the interview opened",
	}, []string{"reason"})

	InboundDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_inbound_dropped_total",
		Help: "Inbound frames ignored as malformed or unrecognized",
	}, []string{"reason"})

	Turns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_turns_total",
		Help: "Messages appended to session logs by speaker",
	}, []string{"who"})

	SessionExits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_session_exits_total",
		Help: "Session loop exits by cause",
	}, []string{"cause"})

	Finalizations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_finalizations_total",
		Help: "Finalization runs by result",
	}, []string{"result"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "interview_stage_duration_seconds",
		Help:    "Collaborator call latency",
		Buckets: []float64{0.05, 0.1, 0.2, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
	}, []string{"stage"})

	Degraded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_collaborator_degraded_total",
		Help: "Collaborator calls answered with fallback data",
	}, []string{"collaborator"})

	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_backend_errors_total",
		Help: "Backend errors by stage and engine",
	}, []string{"stage", "engine"})
)
