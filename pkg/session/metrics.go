package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "nestmut"
	sessionSubsystem = "session"
)

// Commit outcomes used as the status label of CommitsTotal.
const (
	statusSuccess = "success"
	statusError   = "error"
)

// Metrics counts session activity.
type Metrics struct {
	// ChangeSignalsTotal counts MarkDirty calls received from tracked roots.
	ChangeSignalsTotal prometheus.Counter

	// CommitsTotal counts Commit calls that had work to do.
	// Labels: status (success, error)
	CommitsTotal *prometheus.CounterVec

	// CommittedDocumentsTotal counts documents written by Commit.
	CommittedDocumentsTotal prometheus.Counter
}

// NewMetrics creates the session metrics and registers them with reg. A nil
// reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ChangeSignalsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: sessionSubsystem,
			Name:      "change_signals_total",
			Help:      "Total change signals received from tracked roots",
		}),
		CommitsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: sessionSubsystem,
			Name:      "commits_total",
			Help:      "Total commits by status",
		}, []string{"status"}),
		CommittedDocumentsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: sessionSubsystem,
			Name:      "committed_documents_total",
			Help:      "Total documents written by commits",
		}),
	}
}
