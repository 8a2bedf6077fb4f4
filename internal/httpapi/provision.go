package httpapi

import (
	"net/http"

	"fleetd/internal/objects"
)

// affinityGroups resolves each name's current conductor_affinity to a
// hostname, grouping names by hostname for DispatchAffinity, and reports
// the live conductor hostnames so DispatchAffinity can mark names whose
// conductor has since gone away (§4.5 "Affinity variant", §9).
func (s *Server) affinityGroups(w http.ResponseWriter, r *http.Request, names []string) (map[string][]string, map[string]bool, bool) {
	ctx := r.Context()
	nodes, err := s.Repo.ListIn(ctx, names, false)
	if err != nil {
		writeErr(w, err)
		return nil, nil, false
	}

	groups := make(map[string][]string)
	for _, n := range nodes {
		if n.ConductorAffinity == 0 {
			groups[""] = append(groups[""], n.Name)
			continue
		}
		svc, err := s.Repo.GetServiceByID(ctx, n.ConductorAffinity)
		if err != nil {
			groups[""] = append(groups[""], n.Name)
			continue
		}
		groups[svc.Hostname] = append(groups[svc.Hostname], n.Name)
	}

	members, err := s.SvcReg.ListLive(ctx, objects.ServiceKindConductor)
	if err != nil {
		writeErr(w, err)
		return nil, nil, false
	}
	live := make(map[string]bool, len(members))
	for _, m := range members {
		live[m.Hostname] = true
	}
	return groups, live, true
}

// handleProvision implements PUT /v1/nodes/provision (§4.7, §6):
// ?target=dhcp|nodeset drives the normal weighted-dispatch provision flow;
// ?target=un_dhcp|un_nodeset routes to clean, affinity-bound to whichever
// conductor owns each node (§4.7 "affinity-based routing").
func (s *Server) handleProvision(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		writeFault(w, http.StatusNotAcceptable, "method not allowed")
		return
	}
	var req namesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFault(w, http.StatusBadRequest, err.Error())
		return
	}
	names := req.names()
	q := r.URL.Query()
	target := q.Get("target")

	switch target {
	case "un_dhcp", "un_nodeset":
		groups, live, ok := s.affinityGroups(w, r, names)
		if !ok {
			return
		}
		res, err := s.Dispatcher.DispatchAffinity(r.Context(), "clean", groups, nil, s.DispatchTimeout, live)
		if err != nil {
			writeErr(w, err)
			return
		}
		for _, n := range groups[""] {
			res[n] = "DeployStateFailure: node has no conductor affinity"
		}
		writeJSON(w, http.StatusOK, outcomeResponse{Nodes: res})

	case "dhcp", "nodeset":
		kw := map[string]interface{}{
			"Target":  objects.StateDeployDHCP,
			"OSImage": q.Get("osimage"),
			"Passwd":  q.Get("passwd"),
			"Subnet":  q.Get("subnet"),
		}
		if target == "nodeset" {
			kw["Target"] = objects.StateDeployNodeset
		}
		res, err := s.Dispatcher.Dispatch(r.Context(), objects.ServiceKindConductor, "provision", names, kw, s.DispatchTimeout)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, outcomeResponse{Nodes: res})

	default:
		writeFault(w, http.StatusBadRequest, "target must be one of dhcp, nodeset, un_dhcp, un_nodeset")
	}
}

// handleProvisionCallback implements PUT /v1/nodes/provision/callback
// (§4.7): affinity-routed to the conductor that owns the node, same as the
// un_dhcp/un_nodeset clean path. fetch_ssh_pub short-circuits to the
// configured public key without touching node state.
func (s *Server) handleProvisionCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		writeFault(w, http.StatusNotAcceptable, "method not allowed")
		return
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		writeFault(w, http.StatusBadRequest, "missing name")
		return
	}
	fetchSSHPub := r.URL.Query().Get("fetch_ssh_pub")

	names := []string{name}
	groups, live, ok := s.affinityGroups(w, r, names)
	if !ok {
		return
	}

	kw := map[string]interface{}{
		"FetchSSHPub": fetchSSHPub,
		"SSHPubKey":   s.SSHPubKey,
	}

	if fetchSSHPub != "" {
		// No conductor affinity is required to hand back the public key;
		// route to any live conductor since the handler itself ignores the
		// node's affinity for this action.
		res, err := s.Dispatcher.Dispatch(r.Context(), objects.ServiceKindConductor, "provision_callback", names, kw, s.DispatchTimeout)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, outcomeResponse{Nodes: res})
		return
	}

	if len(groups[""]) > 0 {
		writeJSON(w, http.StatusConflict, outcomeResponse{Nodes: map[string]string{
			name: "DeployStateFailure: node has no conductor affinity",
		}})
		return
	}
	res, err := s.Dispatcher.DispatchAffinity(r.Context(), "provision_callback", groups, kw, s.DispatchTimeout, live)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcomeResponse{Nodes: res})
}
