package metrics

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPrometheus_ServesRegisteredMetrics(t *testing.T) {
	reg := NewRegistry("fleetd")
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "dispatch_total", Help: "test"})
	counter.Add(3)
	require.NoError(t, reg.Register(counter))

	srv, err := NewPrometheus("127.0.0.1", 0, nil, reg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv.Start(ctx)
	defer srv.Stop()

	addr := srv.listener.Addr().String()
	var resp *http.Response
	for i := 0; i < 20; i++ {
		resp, err = http.Get(fmt.Sprintf("http://%s/metrics/fleetd", addr))
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNewRegistry_CarriesName(t *testing.T) {
	reg := NewRegistry("network")
	assert.Equal(t, "network", reg.Name)
}
