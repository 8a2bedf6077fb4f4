package httpapi

import (
	"net/http"

	"fleetd/internal/objects"
)

type networkWire struct {
	Name         string            `json:"name"`
	Subnet       string            `json:"subnet"`
	Netmask      string            `json:"netmask"`
	Gateway      string            `json:"gateway,omitempty"`
	Nameservers  []string          `json:"nameservers,omitempty"`
	NTPServers   []string          `json:"ntpservers,omitempty"`
	Domain       string            `json:"domain,omitempty"`
	DynamicRange string            `json:"dynamic_range,omitempty"`
	Extra        map[string]string `json:"extra,omitempty"`
}

func toNetworkWire(n *objects.Network) networkWire {
	return networkWire{
		Name: n.Name, Subnet: n.Subnet, Netmask: n.Netmask, Gateway: n.Gateway,
		Nameservers: n.Nameservers, NTPServers: n.NTPServers, Domain: n.Domain,
		DynamicRange: n.DynamicRange, Extra: n.Extra,
	}
}

// handleNetworkCollection implements POST/GET /v1/network (§6, §4.9).
func (s *Server) handleNetworkCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var wire networkWire
		if err := readAndValidate(r, networkCreateSchema, &wire); err != nil {
			writeFault(w, http.StatusBadRequest, err.Error())
			return
		}
		n := &objects.Network{
			Name: wire.Name, Subnet: wire.Subnet, Netmask: wire.Netmask, Gateway: wire.Gateway,
			Nameservers: wire.Nameservers, NTPServers: wire.NTPServers, Domain: wire.Domain,
			DynamicRange: wire.DynamicRange, Extra: wire.Extra,
		}
		if err := s.Repo.CreateNetwork(r.Context(), n); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toNetworkWire(n))

	case http.MethodGet:
		networks, err := s.Repo.ListNetworks(r.Context())
		if err != nil {
			writeErr(w, err)
			return
		}
		out := make([]networkWire, 0, len(networks))
		for _, n := range networks {
			out = append(out, toNetworkWire(n))
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"networks": out})

	default:
		writeFault(w, http.StatusNotAcceptable, "method not allowed")
	}
}

// handleNetworkByName implements GET/DELETE /v1/network/<name>.
func (s *Server) handleNetworkByName(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Path[len("/v1/network/"):]
	switch r.Method {
	case http.MethodGet:
		n, err := s.Repo.GetNetworkByName(r.Context(), name)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toNetworkWire(n))

	case http.MethodDelete:
		if err := s.Repo.DestroyNetwork(r.Context(), name); err != nil {
			writeErr(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		writeFault(w, http.StatusNotAcceptable, "method not allowed")
	}
}
