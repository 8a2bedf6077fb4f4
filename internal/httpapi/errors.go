package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"fleetd/internal/conductor"
	"fleetd/internal/dispatch"
	"fleetd/internal/objects"
	"fleetd/internal/registry"
)

// fault is the §6 "Error response shape": {faultstring, faultcode}.
// faultcode follows the WSME/pecan convention original_source's hooks.py
// implies (the fault's own HTTP status, not a separate application code
// space) — see DESIGN.md Open Questions.
type fault struct {
	FaultString string `json:"faultstring"`
	FaultCode   int    `json:"faultcode"`
}

func writeFault(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(fault{FaultString: msg, FaultCode: status})
}

// statusFor implements §7's taxonomy table, mapping a core error to its
// HTTP status.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, objects.ErrNodeNotFound),
		errors.Is(err, objects.ErrNetworkNotFound),
		errors.Is(err, objects.ErrOSImageNotFound),
		errors.Is(err, objects.ErrNicNotFound),
		errors.Is(err, objects.ErrServiceNotFound),
		errors.Is(err, objects.ErrPasswdNotFound),
		errors.Is(err, registry.ErrPluginNotFound),
		errors.Is(err, dispatch.ErrNoValidHost):
		return http.StatusNotFound
	case errors.Is(err, objects.ErrDuplicateName),
		errors.Is(err, objects.ErrMACAlreadyExists),
		errors.Is(err, objects.ErrNicAlreadyExists),
		errors.Is(err, objects.ErrNetworkExists),
		errors.Is(err, objects.ErrOSImageExists),
		errors.Is(err, objects.ErrNodeLocked),
		errors.Is(err, objects.ErrInvalidState),
		errors.Is(err, objects.ErrReferenced):
		return http.StatusConflict
	case errors.Is(err, conductor.ErrNoFreeServiceWorker):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeErr(w http.ResponseWriter, err error) {
	writeFault(w, statusFor(err), err.Error())
}
