// Package httpapi is the external HTTP surface (§6): the versioned /v1
// REST API operators drive fleetd through. It translates resource
// requests into object-layer reads (GET) and bulk-dispatcher RPCs
// (POST/PUT/DELETE power, boot-device and provision operations), and
// applies the fault taxonomy of §7 to every error it returns.
//
// Grounded on original_source/xcat3/api/controllers/v1/*.py for the
// resource/route shape (node/network/osimage/nic/passwd controllers) and
// xcat3/api/controllers/v1/versions.py for the version-negotiation header,
// carried here as X-Fleet-API-Version rather than X-xCAT3-API-Version. The
// teacher (rackd_spike) has no REST API of its own — its HTTP surface
// (internal/http, pkg/http) is a reverse proxy, dropped per DESIGN.md — so
// this package is the one place a router is written directly against
// stdlib net/http.ServeMux rather than adapting teacher code.
package httpapi

import (
	"net/http"
	"time"

	"fleetd/internal/dispatch"
	"fleetd/internal/objects"
	"fleetd/internal/svcregistry"
)

// Server holds everything the HTTP handlers need: the object repo for
// direct reads/writes, the bulk dispatcher for conductor-routed
// operations, and the service registry for affinity resolution
// (clean/provision_callback routing, §4.5's affinity variant).
type Server struct {
	Repo       *objects.Repo
	Dispatcher *dispatch.Dispatcher
	SvcReg     *svcregistry.Registry
	Resolve    dispatch.Resolver

	// DispatchTimeout bounds the bulk dispatcher's join deadline (§4.5
	// step 5). The §8 "batch size < 15" serial/bulk boundary is a fixed
	// constant in createNodes, not configurable.
	DispatchTimeout time.Duration
	SSHPubKey       string
}

// Routes builds the complete /v1 mux, wrapped in the version-negotiation
// middleware (§6).
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/nodes", s.handleNodesCollection)
	mux.HandleFunc("/v1/nodes/info", s.handleNodesInfo)
	mux.HandleFunc("/v1/nodes/power", s.handlePower)
	mux.HandleFunc("/v1/nodes/boot_device", s.handleBootDevice)
	mux.HandleFunc("/v1/nodes/provision", s.handleProvision)
	mux.HandleFunc("/v1/nodes/provision/callback", s.handleProvisionCallback)
	mux.HandleFunc("/v1/nodes/", s.handleNodeByName)

	mux.HandleFunc("/v1/network", s.handleNetworkCollection)
	mux.HandleFunc("/v1/network/", s.handleNetworkByName)

	mux.HandleFunc("/v1/osimages", s.handleOSImageCollection)
	mux.HandleFunc("/v1/osimages/", s.handleOSImageByName)

	mux.HandleFunc("/v1/nics", s.handleNicCollection)
	mux.HandleFunc("/v1/nics/", s.handleNicByMAC)

	mux.HandleFunc("/v1/passwd", s.handlePasswdCollection)
	mux.HandleFunc("/v1/passwd/", s.handlePasswdByKey)

	return versionMiddleware(mux)
}
