package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	SearchesTotal      prometheus.Counter
	SearchFailures     prometheus.Counter
	PDFMatches         prometheus.Counter
	KeywordMatches     prometheus.Counter
	CompletionFailures *prometheus.CounterVec
	ChatsRecorded      prometheus.Counter
	Registrations      prometheus.Counter
	LoginFailures      prometheus.Counter
}

var (
	once   sync.Once
	global *Metrics
)

// Global returns the process-wide metrics registered on the default registry.
func Global() *Metrics {
	once.Do(func() {
		global = New(prometheus.DefaultRegisterer)
	})
	return global
}

// New builds a fresh set of counters and registers them on reg. Tests pass
// their own registry, or nil to skip registration.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SearchesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "querydesk",
			Name:      "searches_total",
			Help:      "Total queries processed by the orchestrator",
		}),
		SearchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "querydesk",
			Name:      "search_failures_total",
			Help:      "Queries that ended in the generic error result",
		}),
		PDFMatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "querydesk",
			Name:      "pdf_matches_total",
			Help:      "Queries that matched a PDF asset",
		}),
		KeywordMatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "querydesk",
			Name:      "keyword_matches_total",
			Help:      "Queries that matched the keyword link table",
		}),
		CompletionFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "querydesk",
			Name:      "completion_failures_total",
			Help:      "Completion calls that returned a placeholder instead of text",
		}, []string{"reason"}),
		ChatsRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "querydesk",
			Name:      "chats_recorded_total",
			Help:      "Chat history rows written",
		}),
		Registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "querydesk",
			Name:      "registrations_total",
			Help:      "Accounts created",
		}),
		LoginFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "querydesk",
			Name:      "login_failures_total",
			Help:      "Rejected login attempts",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.SearchesTotal,
			m.SearchFailures,
			m.PDFMatches,
			m.KeywordMatches,
			m.CompletionFailures,
			m.ChatsRecorded,
			m.Registrations,
			m.LoginFailures,
		)
	}
	return m
}
