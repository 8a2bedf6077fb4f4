package objects

import (
	"context"
)

// CreateOSImage inserts an OSImage row; the (distro, ver, arch) triple is
// not separately unique-constrained (the store only enforces Name), but the
// copycd importer is expected to derive Name from that triple so collisions
// surface as ErrOSImageExists in practice.
func (r *Repo) CreateOSImage(ctx context.Context, img *OSImage) error {
	res, err := r.st.DB().ExecContext(ctx,
		`INSERT INTO osimages (name, distro, ver, arch, profile, type, provmethod, rootfstype, orig_name) VALUES (?,?,?,?,?,?,?,?,?)`,
		img.Name, img.Distro, img.Ver, img.Arch, img.Profile, img.Type, img.ProvMethod, img.RootFSType, img.OrigName)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrOSImageExists
		}
		return err
	}
	img.ID, _ = res.LastInsertId()
	img.ClearChanges()
	return nil
}

// ListOSImages returns every imported OSImage.
func (r *Repo) ListOSImages(ctx context.Context) ([]*OSImage, error) {
	rows, err := r.st.DB().QueryContext(ctx,
		`SELECT id, name, distro, ver, arch, profile, type, provmethod, rootfstype, orig_name FROM osimages`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*OSImage
	for rows.Next() {
		img := &OSImage{}
		if err := rows.Scan(&img.ID, &img.Name, &img.Distro, &img.Ver, &img.Arch, &img.Profile, &img.Type, &img.ProvMethod, &img.RootFSType, &img.OrigName); err != nil {
			return nil, err
		}
		out = append(out, img)
	}
	return out, rows.Err()
}

// DestroyOSImage removes an OSImage, refusing while any node still
// references it by osimage_id (weak-FK invariant, §3 "Ownership").
func (r *Repo) DestroyOSImage(ctx context.Context, name string) error {
	img, err := r.GetOSImageByName(ctx, name)
	if err != nil {
		return err
	}
	var count int
	row := r.st.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM nodes WHERE osimage_id = ?`, img.ID)
	if err := row.Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return ErrReferenced
	}
	_, err = r.st.DB().ExecContext(ctx, `DELETE FROM osimages WHERE id = ?`, img.ID)
	return err
}
