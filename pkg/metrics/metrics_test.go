package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igrelay/pkg/media"
)

func TestItemAndBatchCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ItemFinished("someprofile", media.OutcomeDelivered, time.Second)
	m.ItemFinished("someprofile", media.OutcomeDelivered, time.Second)
	m.ItemFinished("someprofile", media.OutcomeTooLarge, time.Second)
	m.BatchFinished("someprofile", 2, 3, 10*time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ItemsTotal.WithLabelValues("delivered")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ItemsTotal.WithLabelValues("too_large")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BatchesTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.BatchItemsSent))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.BatchItemsTotal))
}

func TestJobUpdateAndTrackingCounters(t *testing.T) {
	m := New(nil)

	m.JobFinished(nil, time.Second)
	m.JobFinished(errors.New("x"), time.Second)
	m.UpdateReceived("callback")
	m.TrackingRun(nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobsTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobsTotal.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UpdatesTotal.WithLabelValues("callback")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TrackingRunsTotal.WithLabelValues("ok")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ItemFinished("x", media.OutcomeFetchFailed, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `igrelay_items_total{outcome="fetch_failed"} 1`)
}
