package objects

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"fleetd/internal/store"
)

// Repo is the object layer's entry point: typed CRUD with change-tracking
// and the bulk operations the task manager and pipeline depend on.
type Repo struct {
	st *store.Store
}

func NewRepo(st *store.Store) *Repo {
	return &Repo{st: st}
}

func marshalMap(m map[string]string) string {
	if len(m) == 0 {
		return "{}"
	}
	b, _ := json.Marshal(m)
	return string(b)
}

func unmarshalMap(s string) map[string]string {
	out := map[string]string{}
	if s == "" {
		return out
	}
	_ = json.Unmarshal([]byte(s), &out)
	return out
}

func marshalControlInfo(c ControlInfo) string {
	b, _ := json.Marshal(c)
	return string(b)
}

func unmarshalControlInfo(s string) ControlInfo {
	var c ControlInfo
	if s == "" {
		return c
	}
	_ = json.Unmarshal([]byte(s), &c)
	return c
}

// CreateMany inserts each node (every column, touched or not) and its nics in one
// transaction, and reports a per-name outcome matching the domain of names
// exactly — duplicate names within the batch fail only for that name.
func (r *Repo) CreateMany(ctx context.Context, nodes []*Node) map[string]string {
	outcome := make(map[string]string, len(nodes))
	seen := make(map[string]bool, len(nodes))

	tx, err := r.st.DB().BeginTx(ctx, nil)
	if err != nil {
		for _, n := range nodes {
			outcome[n.Name] = err.Error()
		}
		return outcome
	}
	defer tx.Rollback()

	for _, n := range nodes {
		if seen[n.Name] {
			outcome[n.Name] = "Error: duplicate name"
			continue
		}
		seen[n.Name] = true

		res, err := tx.ExecContext(ctx,
			`INSERT INTO nodes (name, mgt, netboot, arch, type, state, task_action, control_info, console_info, reservation, conductor_affinity, osimage_id, passwd_id, last_error)
			 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
			n.Name, n.Mgt, n.Netboot, n.Arch, n.Type, n.State, n.TaskAction,
			marshalControlInfo(n.ControlInfo), marshalMap(n.ConsoleInfo), n.Reservation,
			n.ConductorAffinity, n.OSImageID, n.PasswdID, n.LastError)
		if err != nil {
			outcome[n.Name] = "duplicate name"
			continue
		}
		id, _ := res.LastInsertId()
		n.ID = id

		for i := range n.Nics {
			nic := &n.Nics[i]
			nic.NodeID = id
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO nics (uuid, mac, name, ip, netmask, node_id, is_primary, extra) VALUES (?,?,?,?,?,?,?,?)`,
				nic.UUID, strings.ToLower(nic.MAC), nic.Name, nic.IP, nic.Netmask, nic.NodeID, nic.Primary, marshalMap(nic.Extra)); err != nil {
				outcome[n.Name] = err.Error()
				goto next
			}
		}
		outcome[n.Name] = "ok"
		n.ClearChanges()
	next:
	}

	if err := tx.Commit(); err != nil {
		for name := range outcome {
			if outcome[name] == "ok" {
				outcome[name] = err.Error()
			}
		}
	}
	return outcome
}

// SaveMany persists, in a single transaction, every node that has at least
// one touched field; nodes with no touched field are skipped. For a node it
// saves, every column except name and reservation is written, not only the
// touched ones.
func (r *Repo) SaveMany(ctx context.Context, nodes []*Node) error {
	tx, err := r.st.DB().BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, n := range nodes {
		if len(n.ChangedFields()) == 0 {
			continue
		}
		_, err := tx.ExecContext(ctx,
			`UPDATE nodes SET mgt=?, netboot=?, arch=?, type=?, state=?, task_action=?, control_info=?, console_info=?, conductor_affinity=?, osimage_id=?, passwd_id=?, last_error=? WHERE name=?`,
			n.Mgt, n.Netboot, n.Arch, n.Type, n.State, n.TaskAction,
			marshalControlInfo(n.ControlInfo), marshalMap(n.ConsoleInfo),
			n.ConductorAffinity, n.OSImageID, n.PasswdID, n.LastError, n.Name)
		if err != nil {
			return err
		}
		n.ClearChanges()
	}
	return tx.Commit()
}

// ReserveMany atomically moves every name free -> held-by(tag), or none.
func (r *Repo) ReserveMany(ctx context.Context, tag string, names []string) error {
	if err := r.st.Reserve(ctx, tag, names); err != nil {
		if err == store.ErrReservationConflict {
			return ErrNodeLocked
		}
		return err
	}
	return nil
}

// ReleaseMany clears the reservation tag, idempotently.
func (r *Repo) ReleaseMany(ctx context.Context, tag string, names []string) error {
	return r.st.Release(ctx, tag, names)
}

// ListIn loads nodes by name. When wantNics is set, a single follow-up
// query fetches all nics for the resolved node ids and attaches them
// in-memory, avoiding one query per node.
func (r *Repo) ListIn(ctx context.Context, names []string, wantNics bool) ([]*Node, error) {
	if len(names) == 0 {
		return nil, nil
	}
	q := fmt.Sprintf(`SELECT id, name, mgt, netboot, arch, type, state, task_action, control_info, console_info, reservation, conductor_affinity, osimage_id, passwd_id, last_error FROM nodes WHERE name IN (%s)`,
		store.Placeholders(len(names)))
	rows, err := r.st.DB().QueryContext(ctx, q, store.ArgsForIn(names)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var nodes []*Node
	ids := make([]int64, 0, len(names))
	byID := make(map[int64]*Node)
	for rows.Next() {
		n := &Node{}
		var controlInfo, consoleInfo string
		if err := rows.Scan(&n.ID, &n.Name, &n.Mgt, &n.Netboot, &n.Arch, &n.Type, &n.State, &n.TaskAction,
			&controlInfo, &consoleInfo, &n.Reservation, &n.ConductorAffinity, &n.OSImageID, &n.PasswdID, &n.LastError); err != nil {
			return nil, err
		}
		n.ControlInfo = unmarshalControlInfo(controlInfo)
		n.ConsoleInfo = unmarshalMap(consoleInfo)
		nodes = append(nodes, n)
		ids = append(ids, n.ID)
		byID[n.ID] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if wantNics && len(ids) > 0 {
		idArgs := make([]interface{}, len(ids))
		for i, id := range ids {
			idArgs[i] = id
		}
		nq := fmt.Sprintf(`SELECT id, uuid, mac, name, ip, netmask, node_id, is_primary, extra FROM nics WHERE node_id IN (%s)`,
			store.Placeholders(len(ids)))
		nrows, err := r.st.DB().QueryContext(ctx, nq, idArgs...)
		if err != nil {
			return nil, err
		}
		defer nrows.Close()
		for nrows.Next() {
			var nic Nic
			var extra string
			if err := nrows.Scan(&nic.ID, &nic.UUID, &nic.MAC, &nic.Name, &nic.IP, &nic.Netmask, &nic.NodeID, &nic.Primary, &extra); err != nil {
				return nil, err
			}
			nic.Extra = unmarshalMap(extra)
			if n, ok := byID[nic.NodeID]; ok {
				n.Nics = append(n.Nics, nic)
			}
		}
		if err := nrows.Err(); err != nil {
			return nil, err
		}
	}

	return nodes, nil
}

// DestroyMany removes nodes (cascading their nics and dhcp blobs) unless a
// node is in DEPLOY_NODESET, in which case it is refused.
func (r *Repo) DestroyMany(ctx context.Context, names []string) map[string]string {
	outcome := make(map[string]string, len(names))
	nodes, err := r.ListIn(ctx, names, false)
	if err != nil {
		for _, n := range names {
			outcome[n] = err.Error()
		}
		return outcome
	}
	byName := make(map[string]*Node, len(nodes))
	for _, n := range nodes {
		byName[n.Name] = n
	}

	tx, err := r.st.DB().BeginTx(ctx, nil)
	if err != nil {
		for _, n := range names {
			outcome[n] = err.Error()
		}
		return outcome
	}
	defer tx.Rollback()

	for _, name := range names {
		n, ok := byName[name]
		if !ok {
			outcome[name] = "Could not be found."
			continue
		}
		if n.State == StateDeployNodeset {
			outcome[name] = "Can not delete node in nodeset state"
			continue
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM nics WHERE node_id = ?`, n.ID); err != nil {
			outcome[name] = err.Error()
			continue
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM dhcp_options WHERE name = ?`, name); err != nil {
			outcome[name] = err.Error()
			continue
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM nodes WHERE id = ?`, n.ID); err != nil {
			outcome[name] = err.Error()
			continue
		}
		outcome[name] = "ok"
	}

	if err := tx.Commit(); err != nil {
		for name := range outcome {
			if outcome[name] == "ok" {
				outcome[name] = err.Error()
			}
		}
		return outcome
	}
	return outcome
}

// SaveOrUpdateDHCPMany writes the rendered per-node DHCP blobs produced by
// the provisioning pipeline (step 6, §4.7).
func (r *Repo) SaveOrUpdateDHCPMany(ctx context.Context, opts []DHCPOption) error {
	tx, err := r.st.DB().BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, o := range opts {
		if _, err := tx.ExecContext(ctx, `DELETE FROM dhcp_options WHERE name = ?`, o.Name); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO dhcp_options (name, ip, mac, hostname, statements, content) VALUES (?,?,?,?,?,?)`,
			o.Name, o.IP, o.MAC, o.Hostname, o.Statements, o.Content); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// DestroyDHCPMany removes DHCP blobs for the given node names.
func (r *Repo) DestroyDHCPMany(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}
	q := fmt.Sprintf(`DELETE FROM dhcp_options WHERE name IN (%s)`, store.Placeholders(len(names)))
	_, err := r.st.DB().ExecContext(ctx, q, store.ArgsForIn(names)...)
	return err
}

// ListDHCPOptions returns every rendered per-node DHCP blob, the source a
// network-service worker rebuilds its host blocks from (§4.9).
func (r *Repo) ListDHCPOptions(ctx context.Context) ([]DHCPOption, error) {
	rows, err := r.st.DB().QueryContext(ctx,
		`SELECT name, ip, mac, hostname, statements, content FROM dhcp_options`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var opts []DHCPOption
	for rows.Next() {
		var o DHCPOption
		if err := rows.Scan(&o.Name, &o.IP, &o.MAC, &o.Hostname, &o.Statements, &o.Content); err != nil {
			return nil, err
		}
		opts = append(opts, o)
	}
	return opts, rows.Err()
}

// GetOSImageByID loads an OSImage by its numeric id, the value a node's
// OSImageID carries.
func (r *Repo) GetOSImageByID(ctx context.Context, id int64) (*OSImage, error) {
	row := r.st.DB().QueryRowContext(ctx,
		`SELECT id, name, distro, ver, arch, profile, type, provmethod, rootfstype, orig_name FROM osimages WHERE id = ?`, id)
	img := &OSImage{}
	if err := row.Scan(&img.ID, &img.Name, &img.Distro, &img.Ver, &img.Arch, &img.Profile, &img.Type, &img.ProvMethod, &img.RootFSType, &img.OrigName); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrOSImageNotFound
		}
		return nil, err
	}
	return img, nil
}

// GetOSImageByName loads an OSImage by its unique name.
func (r *Repo) GetOSImageByName(ctx context.Context, name string) (*OSImage, error) {
	row := r.st.DB().QueryRowContext(ctx,
		`SELECT id, name, distro, ver, arch, profile, type, provmethod, rootfstype, orig_name FROM osimages WHERE name = ?`, name)
	img := &OSImage{}
	if err := row.Scan(&img.ID, &img.Name, &img.Distro, &img.Ver, &img.Arch, &img.Profile, &img.Type, &img.ProvMethod, &img.RootFSType, &img.OrigName); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrOSImageNotFound
		}
		return nil, err
	}
	return img, nil
}

// GetPasswd loads a Passwd by key.
func (r *Repo) GetPasswd(ctx context.Context, key string) (*Passwd, error) {
	row := r.st.DB().QueryRowContext(ctx,
		`SELECT id, key, username, password, crypt_method FROM passwds WHERE key = ?`, key)
	p := &Passwd{}
	if err := row.Scan(&p.ID, &p.Key, &p.Username, &p.Password, &p.CryptMethod); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrPasswdNotFound
		}
		return nil, err
	}
	return p, nil
}
