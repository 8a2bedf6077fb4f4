package rpc

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type kwargs struct {
	Target string
}

func TestServerClient_RoundTrip(t *testing.T) {
	server := NewServer()
	server.AddHandler("change_power_state", func(ctx context.Context, req Request) (map[string]string, error) {
		var kw kwargs
		require.NoError(t, req.DecodeKwargs(&kw))
		out := make(map[string]string, len(req.Names))
		for _, n := range req.Names {
			out[n] = kw.Target
		}
		return out, nil
	})

	ts := httptest.NewServer(server)
	defer ts.Close()

	client := NewClient(ts.URL, time.Second)
	results, err := client.Call(context.Background(), Request{
		Method:  "change_power_state",
		Names:   []string{"node1", "node2"},
		Workers: 2,
		Kwargs:  map[string]interface{}{"Target": "on"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"node1": "on", "node2": "on"}, results)
}

func TestServerClient_HandlerNotFound(t *testing.T) {
	server := NewServer()
	ts := httptest.NewServer(server)
	defer ts.Close()

	client := NewClient(ts.URL, time.Second)
	_, err := client.Call(context.Background(), Request{Method: "unknown", Names: []string{"node1"}})
	assert.ErrorContains(t, err, ErrHandlerNotFound.Error())
}

func TestServerClient_HandlerError(t *testing.T) {
	server := NewServer()
	server.AddHandler("provision", func(ctx context.Context, req Request) (map[string]string, error) {
		return nil, assert.AnError
	})
	ts := httptest.NewServer(server)
	defer ts.Close()

	client := NewClient(ts.URL, time.Second)
	_, err := client.Call(context.Background(), Request{Method: "provision", Names: []string{"node1"}})
	assert.ErrorContains(t, err, assert.AnError.Error())
}

func TestRequest_DecodeKwargsMissingField(t *testing.T) {
	req := Request{Kwargs: map[string]interface{}{}}
	var kw kwargs
	require.NoError(t, req.DecodeKwargs(&kw))
	assert.Equal(t, "", kw.Target)
}
