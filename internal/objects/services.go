package objects

import (
	"context"
	"database/sql"
)

// UpsertService registers or refreshes a worker process's liveness row.
// C4's no-cache constraint is enforced by callers re-querying ListLive on
// every dispatch rather than by anything this repo does — see
// internal/svcregistry, which is the component that actually owns liveness
// for the etcd-backed registry used by the bulk dispatcher. This table
// exists to satisfy the Data model's literal Service entity when a
// relational view of registered workers is useful (administrative
// listing), independent of the etcd lease mechanism that drives routing.
func (r *Repo) UpsertService(ctx context.Context, hostname, kind string, workers int, online bool, updatedAt int64) (int64, error) {
	_, err := r.st.DB().ExecContext(ctx,
		`DELETE FROM services WHERE hostname = ? AND kind = ?`, hostname, kind)
	if err != nil {
		return 0, err
	}
	res, err := r.st.DB().ExecContext(ctx,
		`INSERT INTO services (hostname, kind, workers, online, updated_at) VALUES (?,?,?,?,?)`,
		hostname, kind, workers, online, updatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetServiceByID loads a service registration by its numeric id, used to
// resolve a node's conductor_affinity back to a routable hostname (§4.5
// affinity variant, §9 "soft pointer" design note).
func (r *Repo) GetServiceByID(ctx context.Context, id int64) (*Service, error) {
	row := r.st.DB().QueryRowContext(ctx,
		`SELECT id, hostname, kind, workers, online, updated_at FROM services WHERE id = ?`, id)
	s := &Service{}
	if err := row.Scan(&s.ID, &s.Hostname, &s.Kind, &s.Workers, &s.Online, &s.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrServiceNotFound
		}
		return nil, err
	}
	return s, nil
}

// GetService loads a single (hostname, kind) registration.
func (r *Repo) GetService(ctx context.Context, hostname, kind string) (*Service, error) {
	row := r.st.DB().QueryRowContext(ctx,
		`SELECT id, hostname, kind, workers, online, updated_at FROM services WHERE hostname = ? AND kind = ?`, hostname, kind)
	s := &Service{}
	if err := row.Scan(&s.ID, &s.Hostname, &s.Kind, &s.Workers, &s.Online, &s.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrServiceNotFound
		}
		return nil, err
	}
	return s, nil
}
