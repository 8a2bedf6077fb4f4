package objects

import "context"

// ListNodeNames returns every node's logical name (GET /v1/nodes).
func (r *Repo) ListNodeNames(ctx context.Context) ([]string, error) {
	rows, err := r.st.DB().QueryContext(ctx, `SELECT name FROM nodes ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// ExistingNames filters candidates down to the ones already present, used
// by the >=15-node bulk-create path to pre-filter duplicates against the DB
// instead of relying on a unique-constraint failure per row (§8 "Batch
// size >= 15 pre-filters duplicates against DB before insert").
func (r *Repo) ExistingNames(ctx context.Context, candidates []string) (map[string]bool, error) {
	existing := make(map[string]bool, len(candidates))
	if len(candidates) == 0 {
		return existing, nil
	}
	nodes, err := r.ListIn(ctx, candidates, false)
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		existing[n.Name] = true
	}
	return existing, nil
}

// UpdateMany applies already-mutated, change-tracked node records without
// taking a reservation (§4.1 Node: "mutated by save_many (task-manager
// context) or update_many (patch API, no lock)"). Unlike SaveMany this is
// not called from within a Task, so it is the PATCH endpoint's entry point.
func (r *Repo) UpdateMany(ctx context.Context, nodes []*Node) error {
	return r.SaveMany(ctx, nodes)
}
