package httpapi

import (
	"encoding/json"
	"net/http"

	jsonpatch "github.com/evanphx/json-patch"
	"github.com/google/uuid"

	"fleetd/internal/objects"
)

// nicWire is the over-the-wire shape of one nic inside nics_info (§6 "POST
// /v1/nodes body {nodes:[{..., nics_info:{nics:[…]}}]}").
type nicWire struct {
	MAC     string            `json:"mac"`
	Name    string            `json:"name,omitempty"`
	IP      string            `json:"ip,omitempty"`
	Netmask string            `json:"netmask,omitempty"`
	Primary bool              `json:"primary,omitempty"`
	Extra   map[string]string `json:"extra,omitempty"`
}

type nicsInfoWire struct {
	Nics []nicWire `json:"nics,omitempty"`
}

// nodeCreateWire is one entry of POST /v1/nodes's nodes array.
type nodeCreateWire struct {
	Name        string              `json:"name"`
	Mgt         string              `json:"mgt"`
	Netboot     string              `json:"netboot"`
	Arch        string              `json:"arch,omitempty"`
	Type        string              `json:"type,omitempty"`
	ControlInfo objects.ControlInfo `json:"control_info,omitempty"`
	ConsoleInfo map[string]string   `json:"console_info,omitempty"`
	NicsInfo    nicsInfoWire        `json:"nics_info,omitempty"`
}

func (w nodeCreateWire) toNode() *objects.Node {
	n := &objects.Node{
		Name:        w.Name,
		Mgt:         w.Mgt,
		Netboot:     w.Netboot,
		Arch:        w.Arch,
		Type:        w.Type,
		ControlInfo: w.ControlInfo,
		ConsoleInfo: w.ConsoleInfo,
	}
	n.Touch("mgt", "netboot", "arch", "type", "control_info", "console_info")
	for _, nw := range w.NicsInfo.Nics {
		nic := objects.Nic{
			UUID:    uuid.NewString(),
			MAC:     nw.MAC,
			Name:    nw.Name,
			IP:      nw.IP,
			Netmask: nw.Netmask,
			Primary: nw.Primary,
			Extra:   nw.Extra,
		}
		n.Nics = append(n.Nics, nic)
	}
	return n
}

type createNodesRequest struct {
	Nodes []nodeCreateWire `json:"nodes"`
}

type nameWire struct {
	Name string `json:"name"`
}

type namesRequest struct {
	Nodes []nameWire `json:"nodes"`
}

func (r namesRequest) names() []string {
	out := make([]string, 0, len(r.Nodes))
	for _, n := range r.Nodes {
		out = append(out, n.Name)
	}
	return out
}

type outcomeResponse struct {
	Nodes map[string]string `json:"nodes"`
}

func decodeJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// handleNodesCollection implements POST/DELETE/GET /v1/nodes (§6).
func (s *Server) handleNodesCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.createNodes(w, r)
	case http.MethodDelete:
		s.destroyNodes(w, r)
	case http.MethodGet:
		s.listNodeNames(w, r)
	case http.MethodPatch:
		s.patchNodes(w, r)
	default:
		writeFault(w, http.StatusNotAcceptable, "method not allowed")
	}
}

// createNodes implements §8's boundary behavior: batch size < 15 creates
// serially (so a duplicate name within the batch fails only that one
// entry, per the S1-adjacent boundary test); batch size >= 15 pre-filters
// duplicate names against the store before a single bulk insert.
func (s *Server) createNodes(w http.ResponseWriter, r *http.Request) {
	var req createNodesRequest
	if err := readAndValidate(r, nodeCreateSchema, &req); err != nil {
		writeFault(w, http.StatusBadRequest, err.Error())
		return
	}

	const serialThreshold = 15

	ctx := r.Context()
	outcome := make(map[string]string, len(req.Nodes))

	if len(req.Nodes) < serialThreshold {
		for _, nw := range req.Nodes {
			n := nw.toNode()
			res := s.Repo.CreateMany(ctx, []*objects.Node{n})
			for name, v := range res {
				outcome[name] = v
			}
		}
		writeJSON(w, http.StatusCreated, outcomeResponse{Nodes: outcome})
		return
	}

	candidates := make([]string, 0, len(req.Nodes))
	for _, nw := range req.Nodes {
		candidates = append(candidates, nw.Name)
	}
	existing, err := s.Repo.ExistingNames(ctx, candidates)
	if err != nil {
		writeErr(w, err)
		return
	}

	var toCreate []*objects.Node
	for _, nw := range req.Nodes {
		if existing[nw.Name] {
			outcome[nw.Name] = "duplicate name"
			continue
		}
		toCreate = append(toCreate, nw.toNode())
	}
	res := s.Repo.CreateMany(ctx, toCreate)
	for name, v := range res {
		outcome[name] = v
	}
	writeJSON(w, http.StatusCreated, outcomeResponse{Nodes: outcome})
}

// destroyNodes implements DELETE /v1/nodes, routed through the bulk
// dispatcher to the conductor's destroy_nodes entry point (§4.6) so the
// DEPLOY_NODESET refusal and the reservation discipline apply uniformly
// with the RPC-driven path, not a second, inconsistent direct-DB path.
func (s *Server) destroyNodes(w http.ResponseWriter, r *http.Request) {
	var req namesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFault(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.Dispatcher.Dispatch(r.Context(), objects.ServiceKindConductor, "destroy_nodes", req.names(), nil, s.DispatchTimeout)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, outcomeResponse{Nodes: res})
}

func (s *Server) listNodeNames(w http.ResponseWriter, r *http.Request) {
	names, err := s.Repo.ListNodeNames(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"nodes": names})
}

// nicDetail/nodeDetail mirror objects.Nic/Node for the GET detail
// responses and for PATCH's json-patch round trip: field names match the
// data model's wire vocabulary (§3), not the Go struct's exported names.
type nicDetail struct {
	UUID    string            `json:"uuid"`
	MAC     string            `json:"mac"`
	Name    string            `json:"name,omitempty"`
	IP      string            `json:"ip,omitempty"`
	Netmask string            `json:"netmask,omitempty"`
	Primary bool              `json:"primary,omitempty"`
	Extra   map[string]string `json:"extra,omitempty"`
}

type nodeDetail struct {
	Name              string              `json:"name"`
	Mgt               string              `json:"mgt"`
	Netboot           string              `json:"netboot"`
	Arch              string              `json:"arch"`
	Type              string              `json:"type,omitempty"`
	State             string              `json:"state"`
	TaskAction        string              `json:"task_action,omitempty"`
	ControlInfo       objects.ControlInfo `json:"control_info,omitempty"`
	ConsoleInfo       map[string]string   `json:"console_info,omitempty"`
	Reservation       string              `json:"reservation,omitempty"`
	ConductorAffinity int64               `json:"conductor_affinity,omitempty"`
	OSImageID         int64               `json:"osimage_id,omitempty"`
	PasswdID          int64               `json:"passwd_id,omitempty"`
	LastError         string              `json:"last_error,omitempty"`
	Nics              []nicDetail         `json:"nics,omitempty"`
}

func toDetail(n *objects.Node) nodeDetail {
	d := nodeDetail{
		Name: n.Name, Mgt: n.Mgt, Netboot: n.Netboot, Arch: n.Arch, Type: n.Type,
		State: n.State, TaskAction: n.TaskAction, ControlInfo: n.ControlInfo,
		ConsoleInfo: n.ConsoleInfo, Reservation: n.Reservation,
		ConductorAffinity: n.ConductorAffinity, OSImageID: n.OSImageID,
		PasswdID: n.PasswdID, LastError: n.LastError,
	}
	for _, nic := range n.Nics {
		d.Nics = append(d.Nics, nicDetail{
			UUID: nic.UUID, MAC: nic.MAC, Name: nic.Name, IP: nic.IP,
			Netmask: nic.Netmask, Primary: nic.Primary, Extra: nic.Extra,
		})
	}
	return d
}

// handleNodeByName implements GET /v1/nodes/<name> (§6 single-node detail).
func (s *Server) handleNodeByName(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeFault(w, http.StatusNotAcceptable, "method not allowed")
		return
	}
	name := r.URL.Path[len("/v1/nodes/"):]
	if name == "" {
		writeFault(w, http.StatusBadRequest, "missing node name")
		return
	}
	nodes, err := s.Repo.ListIn(r.Context(), []string{name}, true)
	if err != nil {
		writeErr(w, err)
		return
	}
	if len(nodes) == 0 {
		writeFault(w, http.StatusNotFound, "Could not be found.")
		return
	}
	writeJSON(w, http.StatusOK, toDetail(nodes[0]))
}

type nodesInfoRequest struct {
	Nodes []nameWire `json:"nodes"`
}

// handleNodesInfo implements GET /v1/nodes/info (§6 batch detail form).
// The `fields` query param is accepted but not used to trim the response:
// the core's detail shape is small enough that field selection has no
// behavioral significance beyond payload size, which is out of scope here.
func (s *Server) handleNodesInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeFault(w, http.StatusNotAcceptable, "method not allowed")
		return
	}
	var req nodesInfoRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFault(w, http.StatusBadRequest, err.Error())
		return
	}
	names := make([]string, 0, len(req.Nodes))
	for _, n := range req.Nodes {
		names = append(names, n.Name)
	}
	nodes, err := s.Repo.ListIn(r.Context(), names, true)
	if err != nil {
		writeErr(w, err)
		return
	}
	details := make([]nodeDetail, 0, len(nodes))
	for _, n := range nodes {
		details = append(details, toDetail(n))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"nodes": details})
}

type patchRequest struct {
	Nodes   []nameWire      `json:"nodes"`
	Patches json.RawMessage `json:"patches"`
}

// patchNodes implements PATCH /v1/nodes (§6): the same RFC6902 patch
// document is applied independently to each named node, bypassing the
// reservation discipline per §4.1 ("update_many (patch API, no lock)").
func (s *Server) patchNodes(w http.ResponseWriter, r *http.Request) {
	var req patchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFault(w, http.StatusBadRequest, err.Error())
		return
	}
	patch, err := jsonpatch.DecodePatch(req.Patches)
	if err != nil {
		writeFault(w, http.StatusBadRequest, err.Error())
		return
	}

	names := make([]string, 0, len(req.Nodes))
	for _, n := range req.Nodes {
		names = append(names, n.Name)
	}
	ctx := r.Context()
	nodes, err := s.Repo.ListIn(ctx, names, false)
	if err != nil {
		writeErr(w, err)
		return
	}
	byName := make(map[string]*objects.Node, len(nodes))
	for _, n := range nodes {
		byName[n.Name] = n
	}

	outcome := make(map[string]string, len(names))
	var dirty []*objects.Node
	for _, name := range names {
		n, ok := byName[name]
		if !ok {
			outcome[name] = "Could not be found."
			continue
		}
		updated, err := applyPatch(n, patch)
		if err != nil {
			outcome[name] = err.Error()
			continue
		}
		*n = *updated
		outcome[name] = "updated"
		dirty = append(dirty, n)
	}

	if len(dirty) > 0 {
		if err := s.Repo.UpdateMany(ctx, dirty); err != nil {
			writeErr(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, outcomeResponse{Nodes: outcome})
}

// applyPatch decodes n into its wire representation, applies patch, and
// decodes the result back into a Node carrying the right ChangedFields:
// Touch is called for each of mgt, netboot, arch, type, state,
// task_action, control_info, osimage_id and passwd_id that differs
// before/after, so SaveMany's changed-subset update stays correct. name is
// copied back without a Touch; changes to console_info, reservation,
// conductor_affinity, last_error and nics are not copied back.
func applyPatch(n *objects.Node, patch jsonpatch.Patch) (*objects.Node, error) {
	before := toDetail(n)
	beforeJSON, err := json.Marshal(before)
	if err != nil {
		return nil, err
	}
	afterJSON, err := patch.Apply(beforeJSON)
	if err != nil {
		return nil, err
	}
	var after nodeDetail
	if err := json.Unmarshal(afterJSON, &after); err != nil {
		return nil, err
	}

	out := *n
	out.Name = after.Name
	touched := []string{}
	if after.Mgt != before.Mgt {
		out.Mgt = after.Mgt
		touched = append(touched, "mgt")
	}
	if after.Netboot != before.Netboot {
		out.Netboot = after.Netboot
		touched = append(touched, "netboot")
	}
	if after.Arch != before.Arch {
		out.Arch = after.Arch
		touched = append(touched, "arch")
	}
	if after.Type != before.Type {
		out.Type = after.Type
		touched = append(touched, "type")
	}
	if after.State != before.State {
		out.State = after.State
		touched = append(touched, "state")
	}
	if after.TaskAction != before.TaskAction {
		out.TaskAction = after.TaskAction
		touched = append(touched, "task_action")
	}
	if after.ControlInfo != before.ControlInfo {
		out.ControlInfo = after.ControlInfo
		touched = append(touched, "control_info")
	}
	if after.OSImageID != before.OSImageID {
		out.OSImageID = after.OSImageID
		touched = append(touched, "osimage_id")
	}
	if after.PasswdID != before.PasswdID {
		out.PasswdID = after.PasswdID
		touched = append(touched, "passwd_id")
	}
	if len(touched) == 0 {
		return &out, nil
	}
	out.Touch(touched...)
	return &out, nil
}
