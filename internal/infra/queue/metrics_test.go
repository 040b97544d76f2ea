package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"feedwatch/internal/usecase/poll"

	"github.com/prometheus/client_golang/prometheus"
	io_prometheus_client "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	m := &io_prometheus_client.Metric{}
	require.NoError(t, c.Write(m))
	return m.GetCounter().GetValue()
}

func TestQueueMetrics_EnqueuedAndDead(t *testing.T) {
	enqueued := counterValue(t, jobsEnqueuedTotal)
	dead := counterValue(t, jobsDeadTotal)
	failed := counterValue(t, jobsCompletedTotal.WithLabelValues("failure"))

	done := make(chan struct{})
	q := startQueue(t, Config{Workers: 1, MaxRetries: 0}, func(context.Context, poll.Job) error {
		defer close(done)
		return errors.New("upstream down")
	})
	require.NoError(t, q.Enqueue(context.Background(), poll.Job{PublisherID: 1, PageNumber: 1}))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("job did not run")
	}
	require.Eventually(t, func() bool {
		return counterValue(t, jobsDeadTotal) == dead+1
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, enqueued+1, counterValue(t, jobsEnqueuedTotal))
	assert.Equal(t, failed+1, counterValue(t, jobsCompletedTotal.WithLabelValues("failure")))
}
