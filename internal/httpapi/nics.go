package httpapi

import (
	"net/http"

	"github.com/google/uuid"

	"fleetd/internal/objects"
)

type nicCreateWire struct {
	Node    string            `json:"node"`
	MAC     string            `json:"mac"`
	Name    string            `json:"name,omitempty"`
	IP      string            `json:"ip,omitempty"`
	Netmask string            `json:"netmask,omitempty"`
	Primary bool              `json:"primary,omitempty"`
	Extra   map[string]string `json:"extra,omitempty"`
}

func toNicWire(n *objects.Nic) nicDetail {
	return nicDetail{
		UUID: n.UUID, MAC: n.MAC, Name: n.Name, IP: n.IP,
		Netmask: n.Netmask, Primary: n.Primary, Extra: n.Extra,
	}
}

// handleNicCollection implements POST/GET /v1/nics (§3 Nic: "if
// standalone, caller must supply a node reference (by name or id)").
func (s *Server) handleNicCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var wire nicCreateWire
		if err := decodeJSON(r, &wire); err != nil {
			writeFault(w, http.StatusBadRequest, err.Error())
			return
		}
		nodeID, err := s.Repo.NodeIDByName(r.Context(), wire.Node)
		if err != nil {
			writeErr(w, err)
			return
		}
		nic := &objects.Nic{
			UUID: uuid.NewString(), MAC: wire.MAC, Name: wire.Name, IP: wire.IP,
			Netmask: wire.Netmask, NodeID: nodeID, Primary: wire.Primary, Extra: wire.Extra,
		}
		if err := s.Repo.CreateNic(r.Context(), nic); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toNicWire(nic))

	case http.MethodGet:
		nics, err := s.Repo.ListNics(r.Context())
		if err != nil {
			writeErr(w, err)
			return
		}
		out := make([]nicDetail, 0, len(nics))
		for _, n := range nics {
			out = append(out, toNicWire(n))
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"nics": out})

	default:
		writeFault(w, http.StatusNotAcceptable, "method not allowed")
	}
}

// handleNicByMAC implements GET/DELETE /v1/nics/<mac>.
func (s *Server) handleNicByMAC(w http.ResponseWriter, r *http.Request) {
	mac := r.URL.Path[len("/v1/nics/"):]
	switch r.Method {
	case http.MethodGet:
		nic, err := s.Repo.GetNicByMAC(r.Context(), mac)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toNicWire(nic))

	case http.MethodDelete:
		if err := s.Repo.DestroyNic(r.Context(), mac); err != nil {
			writeErr(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		writeFault(w, http.StatusNotAcceptable, "method not allowed")
	}
}
