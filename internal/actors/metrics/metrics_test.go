package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rbroggi/parcelhub/internal/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordTransition("", model.StatusPending)
	c.RecordTransition(model.StatusPending, model.StatusPickedUp)
	c.RecordTransition(model.StatusPending, model.StatusPickedUp)
	c.RecordRequest("/api/v1/parcels/", http.MethodPost, http.StatusCreated, 10*time.Millisecond)
	c.RecordEvent(model.EventParcelCreated, nil)
	c.RecordEvent(model.EventParcelCreated, errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(c.transitions.WithLabelValues("NONE", "PENDING")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.transitions.WithLabelValues("PENDING", "PICKED_UP")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.requests.WithLabelValues("/api/v1/parcels/", "POST", "201")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.events.WithLabelValues("parcel.created", "error")))
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordTransition(model.StatusPickedUp, model.StatusDelivered)

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `parcelhub_parcel_transitions_total{from="PICKED_UP",to="DELIVERED"} 1`)
}
