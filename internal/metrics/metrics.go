package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TokensIssued = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "qrattend",
		Name:      "tokens_issued_total",
		Help:      "Attendance tokens minted.",
	})

	TokensExpired = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "qrattend",
		Name:      "tokens_expired_total",
		Help:      "Tokens flipped to expired, by trigger.",
	}, []string{"trigger"})

	Submissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "qrattend",
		Name:      "attendance_submissions_total",
		Help:      "Attendance submissions by outcome and reason.",
	}, []string{"outcome", "reason"})

	StorageErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "qrattend",
		Name:      "storage_errors_total",
		Help:      "Datastore failures surfaced to callers, by operation.",
	}, []string{"op"})
)

// Expiry triggers.
const (
	TriggerExplicit = "explicit"
	TriggerLazy     = "lazy"
	TriggerSweep    = "sweep"
	TriggerUsed     = "single_use"
)
