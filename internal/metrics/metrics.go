// Package metrics exposes Prometheus counters for the registration workflow.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the registration workflow counters.
type Metrics struct {
	Submissions   prometheus.Counter
	Resubmissions prometheus.Counter
	Confirmations *prometheus.CounterVec
	Reviews       *prometheus.CounterVec
	Swept         prometheus.Counter
	Emails        *prometheus.CounterVec
}

// New registers the metrics with reg. Pass prometheus.DefaultRegisterer in
// production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Submissions: f.NewCounter(prometheus.CounterOpts{
			Name: "registration_submissions_total",
			Help: "Registration records created from submitted forms",
		}),
		Resubmissions: f.NewCounter(prometheus.CounterOpts{
			Name: "registration_resubmissions_total",
			Help: "Registration records updated through an edit link",
		}),
		Confirmations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "registration_confirmations_total",
			Help: "Confirmation attempts by outcome",
		}, []string{"outcome"}),
		Reviews: f.NewCounterVec(prometheus.CounterOpts{
			Name: "registration_reviews_total",
			Help: "Administrator review actions by action",
		}, []string{"action"}),
		Swept: f.NewCounter(prometheus.CounterOpts{
			Name: "registration_expired_swept_total",
			Help: "Unconfirmed registration records deleted by the expiry sweep",
		}),
		Emails: f.NewCounterVec(prometheus.CounterOpts{
			Name: "registration_emails_total",
			Help: "Email delivery attempts by status",
		}, []string{"status"}),
	}
}

// IncrementSubmission records a new registration record.
func (m *Metrics) IncrementSubmission() {
	if m == nil {
		return
	}
	m.Submissions.Inc()
}

// IncrementResubmission records an edit-link resubmission.
func (m *Metrics) IncrementResubmission() {
	if m == nil {
		return
	}
	m.Resubmissions.Inc()
}

// IncrementConfirmation records a confirmation attempt with its outcome.
func (m *Metrics) IncrementConfirmation(outcome string) {
	if m == nil {
		return
	}
	m.Confirmations.WithLabelValues(outcome).Inc()
}

// IncrementReview records an approve, reject or notify action.
func (m *Metrics) IncrementReview(action string) {
	if m == nil {
		return
	}
	m.Reviews.WithLabelValues(action).Inc()
}

// AddSwept records records removed by the expiry sweep.
func (m *Metrics) AddSwept(n int) {
	if m == nil {
		return
	}
	m.Swept.Add(float64(n))
}

// IncrementEmail records an email delivery attempt.
func (m *Metrics) IncrementEmail(status string) {
	if m == nil {
		return
	}
	m.Emails.WithLabelValues(status).Inc()
}
