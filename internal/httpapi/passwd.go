package httpapi

import (
	"net/http"

	"fleetd/internal/objects"
)

type passwdWire struct {
	Key         string `json:"key"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	CryptMethod string `json:"crypt_method,omitempty"`
}

func toPasswdWire(p *objects.Passwd) passwdWire {
	// password is deliberately echoed back: it is crypt(3)-hashed lazily by
	// the provisioning pipeline (§4.8), not at create time, so there is no
	// separate plaintext-vs-hash distinction to hide here (§1's auth
	// boundary is out of scope for the core).
	return passwdWire{Key: p.Key, Username: p.Username, Password: p.Password, CryptMethod: p.CryptMethod}
}

// handlePasswdCollection implements POST/GET /v1/passwd (§3 Passwd).
func (s *Server) handlePasswdCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var wire passwdWire
		if err := decodeJSON(r, &wire); err != nil {
			writeFault(w, http.StatusBadRequest, err.Error())
			return
		}
		p := &objects.Passwd{Key: wire.Key, Username: wire.Username, Password: wire.Password, CryptMethod: wire.CryptMethod}
		if err := s.Repo.CreatePasswd(r.Context(), p); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toPasswdWire(p))

	case http.MethodGet:
		passwds, err := s.Repo.ListPasswds(r.Context())
		if err != nil {
			writeErr(w, err)
			return
		}
		out := make([]passwdWire, 0, len(passwds))
		for _, p := range passwds {
			out = append(out, toPasswdWire(p))
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"passwd": out})

	default:
		writeFault(w, http.StatusNotAcceptable, "method not allowed")
	}
}

// handlePasswdByKey implements GET/DELETE /v1/passwd/<key>.
func (s *Server) handlePasswdByKey(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Path[len("/v1/passwd/"):]
	switch r.Method {
	case http.MethodGet:
		p, err := s.Repo.GetPasswd(r.Context(), key)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toPasswdWire(p))

	case http.MethodDelete:
		if err := s.Repo.DestroyPasswd(r.Context(), key); err != nil {
			writeErr(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		writeFault(w, http.StatusNotAcceptable, "method not allowed")
	}
}
