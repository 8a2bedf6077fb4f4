package httpapi

import (
	"net/http"

	"fleetd/internal/objects"
)

// handleBootDevice implements PUT/GET /v1/nodes/boot_device (§4.3, §6):
// PUT sets the next-boot device (?target=net|disk|cdrom), GET reads it
// back. Same dispatch shape as handlePower.
func (s *Server) handleBootDevice(w http.ResponseWriter, r *http.Request) {
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
		res, err := s.Dispatcher.Dispatch(r.Context(), objects.ServiceKindConductor, "set_boot_device", names,
			map[string]interface{}{"Target": target}, s.DispatchTimeout)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, outcomeResponse{Nodes: res})

	case http.MethodGet:
		res, err := s.Dispatcher.Dispatch(r.Context(), objects.ServiceKindConductor, "get_boot_device", names, nil, s.DispatchTimeout)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, outcomeResponse{Nodes: res})

	default:
		writeFault(w, http.StatusNotAcceptable, "method not allowed")
	}
}
