package objects

import (
	"context"
	"database/sql"
	"strings"
)

// CreateNic inserts a standalone nic (§3 Nic lifecycle: "if standalone,
// caller must supply a node reference"); nodeID must already be resolved by
// the caller (by name or id, per spec) before this is called.
func (r *Repo) CreateNic(ctx context.Context, nic *Nic) error {
	res, err := r.st.DB().ExecContext(ctx,
		`INSERT INTO nics (uuid, mac, name, ip, netmask, node_id, is_primary, extra) VALUES (?,?,?,?,?,?,?,?)`,
		nic.UUID, strings.ToLower(nic.MAC), nic.Name, nic.IP, nic.Netmask, nic.NodeID, nic.Primary, marshalMap(nic.Extra))
	if err != nil {
		if isUniqueViolation(err) {
			return ErrMACAlreadyExists
		}
		return err
	}
	nic.ID, _ = res.LastInsertId()
	nic.ClearChanges()
	return nil
}

// GetNicByMAC loads a nic by its case-normalized MAC.
func (r *Repo) GetNicByMAC(ctx context.Context, mac string) (*Nic, error) {
	row := r.st.DB().QueryRowContext(ctx,
		`SELECT id, uuid, mac, name, ip, netmask, node_id, is_primary, extra FROM nics WHERE mac = ?`, strings.ToLower(mac))
	nic := &Nic{}
	var extra string
	if err := row.Scan(&nic.ID, &nic.UUID, &nic.MAC, &nic.Name, &nic.IP, &nic.Netmask, &nic.NodeID, &nic.Primary, &extra); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNicNotFound
		}
		return nil, err
	}
	nic.Extra = unmarshalMap(extra)
	return nic, nil
}

// ListNics returns every nic in the store, used by the /v1/nics collection
// endpoint.
func (r *Repo) ListNics(ctx context.Context) ([]*Nic, error) {
	rows, err := r.st.DB().QueryContext(ctx,
		`SELECT id, uuid, mac, name, ip, netmask, node_id, is_primary, extra FROM nics`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Nic
	for rows.Next() {
		nic := &Nic{}
		var extra string
		if err := rows.Scan(&nic.ID, &nic.UUID, &nic.MAC, &nic.Name, &nic.IP, &nic.Netmask, &nic.NodeID, &nic.Primary, &extra); err != nil {
			return nil, err
		}
		nic.Extra = unmarshalMap(extra)
		out = append(out, nic)
	}
	return out, rows.Err()
}

// DestroyNic removes a single nic by mac.
func (r *Repo) DestroyNic(ctx context.Context, mac string) error {
	nic, err := r.GetNicByMAC(ctx, mac)
	if err != nil {
		return err
	}
	_, err = r.st.DB().ExecContext(ctx, `DELETE FROM nics WHERE id = ?`, nic.ID)
	return err
}

// NodeIDByName resolves a node's id by its logical name, used to attach a
// standalone nic creation request to its node (§3: "caller must supply a
// node reference (by name or id)").
func (r *Repo) NodeIDByName(ctx context.Context, name string) (int64, error) {
	row := r.st.DB().QueryRowContext(ctx, `SELECT id FROM nodes WHERE name = ?`, name)
	var id int64
	if err := row.Scan(&id); err != nil {
		if err == sql.ErrNoRows {
			return 0, ErrNodeNotFound
		}
		return 0, err
	}
	return id, nil
}
