package httpapi

import (
	"net/http"

	"fleetd/internal/objects"
)

type osimageWire struct {
	Name       string `json:"name"`
	Distro     string `json:"distro"`
	Ver        string `json:"ver"`
	Arch       string `json:"arch"`
	Profile    string `json:"profile,omitempty"`
	Type       string `json:"type,omitempty"`
	ProvMethod string `json:"provmethod,omitempty"`
	RootFSType string `json:"rootfstype,omitempty"`
	OrigName   string `json:"orig_name,omitempty"`
}

func toOSImageWire(img *objects.OSImage) osimageWire {
	return osimageWire{
		Name: img.Name, Distro: img.Distro, Ver: img.Ver, Arch: img.Arch,
		Profile: img.Profile, Type: img.Type, ProvMethod: img.ProvMethod,
		RootFSType: img.RootFSType, OrigName: img.OrigName,
	}
}

// handleOSImageCollection implements POST/GET /v1/osimages (§6). Creating
// an OSImage only registers its metadata row; the on-disk import itself
// runs lazily from internal/copycd the first time a node provisions
// against it (§4.7 step 3), matching the teacher's lazy-ensure idiom.
func (s *Server) handleOSImageCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var wire osimageWire
		if err := decodeJSON(r, &wire); err != nil {
			writeFault(w, http.StatusBadRequest, err.Error())
			return
		}
		img := &objects.OSImage{
			Name: wire.Name, Distro: wire.Distro, Ver: wire.Ver, Arch: wire.Arch,
			Profile: wire.Profile, Type: wire.Type, ProvMethod: wire.ProvMethod,
			RootFSType: wire.RootFSType, OrigName: wire.OrigName,
		}
		if err := s.Repo.CreateOSImage(r.Context(), img); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toOSImageWire(img))

	case http.MethodGet:
		images, err := s.Repo.ListOSImages(r.Context())
		if err != nil {
			writeErr(w, err)
			return
		}
		out := make([]osimageWire, 0, len(images))
		for _, img := range images {
			out = append(out, toOSImageWire(img))
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"osimages": out})

	default:
		writeFault(w, http.StatusNotAcceptable, "method not allowed")
	}
}

// handleOSImageByName implements GET/DELETE /v1/osimages/<name>. Deletion
// is dispatched to a conductor (destroy_osimage) rather than called
// directly against the repo, since the conductor process is what owns the
// on-disk artifact tree this metadata row describes (§4.3's artifact
// ownership boundary).
func (s *Server) handleOSImageByName(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Path[len("/v1/osimages/"):]
	switch r.Method {
	case http.MethodGet:
		img, err := s.Repo.GetOSImageByName(r.Context(), name)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toOSImageWire(img))

	case http.MethodDelete:
		res, err := s.Dispatcher.Dispatch(r.Context(), objects.ServiceKindConductor, "destroy_osimage", []string{name}, nil, s.DispatchTimeout)
		if err != nil {
			writeErr(w, err)
			return
		}
		if v, ok := res[name]; ok && v != "SUCCESS" {
			writeFault(w, http.StatusConflict, v)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		writeFault(w, http.StatusNotAcceptable, "method not allowed")
	}
}
