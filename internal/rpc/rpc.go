// Package rpc is the HTTP+JSON transport carrying method name, kwargs, and
// per-node results between fleetapi, fleetcond and fleetnet (§6 "Wire
// protocol"). It replaces the teacher's capnproto transport — see
// DESIGN.md for why capnp was dropped — but keeps its Manager shape
// (named clients/handlers, one connection fanned out to every registered
// handler) from rackd_spike/internal/transport/rpc.go, re-expressed over
// net/http instead of a capnp stream.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mitchellh/mapstructure"
)

var (
	ErrHandlerNotFound = errors.New("rpc: handler not registered")
)

// Request is the envelope carried by every call: a method name, the shard
// of node names it applies to, the caller's workers hint (carried on the
// wire; no conductor handler reads it, so a shard is never subdivided), and
// method-specific keyword arguments.
type Request struct {
	Method  string                 `json:"method"`
	Names   []string               `json:"names"`
	Workers int                    `json:"workers"`
	Kwargs  map[string]interface{} `json:"kwargs,omitempty"`
}

// DecodeKwargs decodes the request's free-form kwargs map into a typed
// struct using mapstructure, the same library the rest of the pack uses
// for generic option decoding.
func (r Request) DecodeKwargs(out interface{}) error {
	return mapstructure.Decode(r.Kwargs, out)
}

// Response is the per-node outcome map plus an optional batch-level error
// (dispatcher failures, no live conductor — §7 "Batch-level exceptions
// fail the whole batch").
type Response struct {
	Results map[string]string `json:"results,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// Handler processes one Request and returns a per-name outcome map.
// Handlers must return a result entry for every name in Request.Names —
// the object-layer/task-manager wiring in internal/conductor guarantees
// this.
type Handler func(ctx context.Context, req Request) (map[string]string, error)

// Server multiplexes named handlers behind a single HTTP endpoint, mirroring
// the teacher's RPCManager.AddHandler/GetHandler shape.
type Server struct {
	handlers map[string]Handler
}

func NewServer() *Server {
	return &Server{handlers: make(map[string]Handler)}
}

func (s *Server) AddHandler(method string, h Handler) {
	s.handlers[method] = h
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h, ok := s.handlers[req.Method]
	if !ok {
		writeJSON(w, http.StatusNotFound, Response{Error: ErrHandlerNotFound.Error()})
		return
	}

	results, err := h(r.Context(), req)
	if err != nil {
		writeJSON(w, http.StatusOK, Response{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, Response{Results: results})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// Client issues RPC calls against one conductor/network worker's HTTP
// endpoint. Topic naming ("<base>.<hostname>") from §6 resolves to a base
// URL supplied by the dispatcher, which looks up the worker's address via
// the service registry.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{BaseURL: baseURL, HTTPClient: &http.Client{Timeout: timeout}}
}

// Call issues one synchronous RPC and returns its per-name outcome map.
func (c *Client) Call(ctx context.Context, req Request) (map[string]string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if out.Error != "" {
		return nil, fmt.Errorf("%s", out.Error)
	}
	return out.Results, nil
}
