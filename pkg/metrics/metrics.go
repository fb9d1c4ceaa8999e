package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records authentication attempts by result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boardhub_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"result"},
	)

	// AccessChecks counts board authorization decisions and their outcome (allow|deny|error).
	AccessChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boardhub_access_checks_total",
			Help: "Total number of board access checks",
		},
		[]string{"action", "result"},
	)

	// InvitesIssued counts invitation attempts split by outcome (created|existing).
	InvitesIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boardhub_invites_issued_total",
			Help: "Total number of account invitations",
		},
		[]string{"outcome"},
	)

	// JoinRequestDecisions counts accept/reject moderation outcomes.
	JoinRequestDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boardhub_join_request_decisions_total",
			Help: "Total number of resolved board join requests",
		},
		[]string{"decision"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "boardhub_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
