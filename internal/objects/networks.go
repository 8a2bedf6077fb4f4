package objects

import (
	"context"
	"database/sql"
	"strings"
)

func marshalList(l []string) string {
	return marshalMap(listToMap(l))
}

func unmarshalList(s string) []string {
	m := unmarshalMap(s)
	out := make([]string, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}

func listToMap(l []string) map[string]string {
	m := make(map[string]string, len(l))
	for i, v := range l {
		m[itoa(i)] = v
	}
	return m
}

func itoa(i int) string {
	const digits = "0123456789"
	if i == 0 {
		return "0"
	}
	var b []byte
	for i > 0 {
		b = append([]byte{digits[i%10]}, b...)
		i /= 10
	}
	return string(b)
}

// CreateNetwork inserts a network row.
func (r *Repo) CreateNetwork(ctx context.Context, n *Network) error {
	res, err := r.st.DB().ExecContext(ctx,
		`INSERT INTO networks (name, subnet, netmask, gateway, nameservers, ntpservers, domain, dynamic_range, extra) VALUES (?,?,?,?,?,?,?,?,?)`,
		n.Name, n.Subnet, n.Netmask, n.Gateway, marshalList(n.Nameservers), marshalList(n.NTPServers), n.Domain, n.DynamicRange, marshalMap(n.Extra))
	if err != nil {
		if isUniqueViolation(err) {
			return ErrNetworkExists
		}
		return err
	}
	n.ID, _ = res.LastInsertId()
	n.ClearChanges()
	return nil
}

// ListNetworks returns every configured network (used at fleetnet startup
// to build the per-subnet DHCP rendering context, §4.9).
func (r *Repo) ListNetworks(ctx context.Context) ([]*Network, error) {
	rows, err := r.st.DB().QueryContext(ctx,
		`SELECT id, name, subnet, netmask, gateway, nameservers, ntpservers, domain, dynamic_range, extra FROM networks`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Network
	for rows.Next() {
		n := &Network{}
		var ns, ntp, extra string
		if err := rows.Scan(&n.ID, &n.Name, &n.Subnet, &n.Netmask, &n.Gateway, &ns, &ntp, &n.Domain, &n.DynamicRange, &extra); err != nil {
			return nil, err
		}
		n.Nameservers = unmarshalList(ns)
		n.NTPServers = unmarshalList(ntp)
		n.Extra = unmarshalMap(extra)
		out = append(out, n)
	}
	return out, rows.Err()
}

// GetNetworkByName loads a single network by name.
func (r *Repo) GetNetworkByName(ctx context.Context, name string) (*Network, error) {
	row := r.st.DB().QueryRowContext(ctx,
		`SELECT id, name, subnet, netmask, gateway, nameservers, ntpservers, domain, dynamic_range, extra FROM networks WHERE name = ?`, name)
	n := &Network{}
	var ns, ntp, extra string
	if err := row.Scan(&n.ID, &n.Name, &n.Subnet, &n.Netmask, &n.Gateway, &ns, &ntp, &n.Domain, &n.DynamicRange, &extra); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNetworkNotFound
		}
		return nil, err
	}
	n.Nameservers = unmarshalList(ns)
	n.NTPServers = unmarshalList(ntp)
	n.Extra = unmarshalMap(extra)
	return n, nil
}

// DestroyNetwork removes a network by name (§3 "Lifecycle: CRUD"). Unlike
// OSImage/Passwd, nodes hold no durable network_id foreign key — subnet is
// only ever passed as a request-scoped arg to provision/clean — so there is
// no referential check to make here.
func (r *Repo) DestroyNetwork(ctx context.Context, name string) error {
	n, err := r.GetNetworkByName(ctx, name)
	if err != nil {
		return err
	}
	_, err = r.st.DB().ExecContext(ctx, `DELETE FROM networks WHERE id = ?`, n.ID)
	return err
}

func isUniqueViolation(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "unique")
}
