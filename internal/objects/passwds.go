package objects

import (
	"context"
	"database/sql"
)

// CreatePasswd inserts a named credential (§3 Passwd) exactly as it is
// handed; no caller crypts it first. The provisioning pipeline applies the
// crypt (internal/password) to the stored value when it renders a node's
// OS template.
func (r *Repo) CreatePasswd(ctx context.Context, p *Passwd) error {
	res, err := r.st.DB().ExecContext(ctx,
		`INSERT INTO passwds (key, username, password, crypt_method) VALUES (?,?,?,?)`,
		p.Key, p.Username, p.Password, p.CryptMethod)
	if err != nil {
		return err
	}
	p.ID, _ = res.LastInsertId()
	p.ClearChanges()
	return nil
}

// GetPasswdByID loads a Passwd by its numeric id, the form node.PasswdID
// carries (§4.7 step 3: resolve the node's seeded credential).
func (r *Repo) GetPasswdByID(ctx context.Context, id int64) (*Passwd, error) {
	row := r.st.DB().QueryRowContext(ctx,
		`SELECT id, key, username, password, crypt_method FROM passwds WHERE id = ?`, id)
	p := &Passwd{}
	if err := row.Scan(&p.ID, &p.Key, &p.Username, &p.Password, &p.CryptMethod); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrPasswdNotFound
		}
		return nil, err
	}
	return p, nil
}

// ListPasswds returns every registered credential key (values included,
// since the HTTP API's auth boundary is out of scope for the core per §1).
func (r *Repo) ListPasswds(ctx context.Context) ([]*Passwd, error) {
	rows, err := r.st.DB().QueryContext(ctx, `SELECT id, key, username, password, crypt_method FROM passwds`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Passwd
	for rows.Next() {
		p := &Passwd{}
		if err := rows.Scan(&p.ID, &p.Key, &p.Username, &p.Password, &p.CryptMethod); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DestroyPasswd removes a credential, refusing while any node references it.
func (r *Repo) DestroyPasswd(ctx context.Context, key string) error {
	p, err := r.GetPasswd(ctx, key)
	if err != nil {
		return err
	}
	var count int
	row := r.st.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM nodes WHERE passwd_id = ?`, p.ID)
	if err := row.Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return ErrReferenced
	}
	_, err = r.st.DB().ExecContext(ctx, `DELETE FROM passwds WHERE id = ?`, p.ID)
	return err
}
