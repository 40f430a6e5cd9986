package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCountersIncrement(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncrementSubmission()
	m.IncrementConfirmation("held")
	m.IncrementConfirmation("held")
	m.IncrementReview("approve")
	m.AddSwept(3)
	m.IncrementEmail("sent")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Submissions))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Confirmations.WithLabelValues("held")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Reviews.WithLabelValues("approve")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Swept))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Emails.WithLabelValues("sent")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncrementSubmission()
		m.IncrementConfirmation("expired")
		m.AddSwept(1)
	})
}
