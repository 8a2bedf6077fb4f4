package httpapi

import (
	"net/http"

	"fleetd/internal/objects"
)

// handlePower implements PUT/GET /v1/nodes/power (§4.3, §6): PUT drives
// every named node's control plugin to ?target=on|off|reboot|soft_off|
// soft_reboot; GET queries the current reported state. Both are dispatched
// to live conductors rather than called directly, since the control
// plugin call must run under the conductor's per-node worker pool and
// task lock (§4.6).
func (s *Server) handlePower(w http.ResponseWriter, r *http.Request) {
	var req namesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFault(w, http.StatusBadRequest, err.Error())
		return
	}
	names := req.names()

	switch r.Method {
	case http.MethodPut:
		target := r.URL.Query().Get("target")
		if target == "" {
			writeFault(w, http.StatusBadRequest, "missing target")
			return
		}
		res, err := s.Dispatcher.Dispatch(r.Context(), objects.ServiceKindConductor, "change_power_state", names,
			map[string]interface{}{"Target": target}, s.DispatchTimeout)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, outcomeResponse{Nodes: res})

	case http.MethodGet:
		res, err := s.Dispatcher.Dispatch(r.Context(), objects.ServiceKindConductor, "get_power_state", names, nil, s.DispatchTimeout)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, outcomeResponse{Nodes: res})

	default:
		writeFault(w, http.StatusNotAcceptable, "method not allowed")
	}
}
