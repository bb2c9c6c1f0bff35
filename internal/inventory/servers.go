package inventory

import (
	"context"
	"fmt"
	"strings"

	"nathanbeddoewebdev/fleet/internal/domain"
)

const serverColumns = `id, name, status, environment_id, provider_id, provider_record_id,
        image, size, location, firewall_snapshot, created_at, updated_at`

// ServerFilter narrows ListServers. Zero values match everything.
type ServerFilter struct {
	EnvironmentID int64
	ProviderID    int64
	Status        domain.ServerStatus
}

// CreateServer inserts a server. The environment and provider must exist.
func (r *SQLiteRepository) CreateServer(ctx context.Context, s *domain.Server) error {
	refs := []struct {
		table string
		id    int64
	}{{"environments", s.EnvironmentID}, {"providers", s.ProviderID}}
	for _, ref := range refs {
		ok, err := r.exists(ctx, ref.table, ref.id)
		if err != nil {
			return wrapErr("create server", err)
		}
		if !ok {
			return notFound("create server", fmt.Sprintf("%s %d", strings.TrimSuffix(ref.table, "s"), ref.id))
		}
	}

	now := r.now()
	if s.Status == "" {
		s.Status = domain.ServerCreating
	}
	s.CreatedAt, s.UpdatedAt = now, now
	res, err := r.db.ExecContext(ctx, `
        INSERT INTO servers (name, status, environment_id, provider_id, provider_record_id,
                             image, size, location, firewall_snapshot, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.Name, string(s.Status), s.EnvironmentID, s.ProviderID, s.ProviderRecordID,
		s.Image, s.Size, s.Location, s.FirewallSnapshot, formatTime(now), formatTime(now))
	if err != nil {
		return wrapErr("create server", err)
	}
	s.ID, err = res.LastInsertId()
	return wrapErr("create server", err)
}

// GetServer returns the server with the given ID.
func (r *SQLiteRepository) GetServer(ctx context.Context, id int64) (*domain.Server, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+serverColumns+` FROM servers WHERE id = ?`, id)
	s, err := scanServer(row)
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("get server %d", id), err)
	}
	return s, nil
}

// GetServerByName returns the named server within an environment.
func (r *SQLiteRepository) GetServerByName(ctx context.Context, environmentID int64, name string) (*domain.Server, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+serverColumns+` FROM servers WHERE environment_id = ? AND name = ?`, environmentID, name)
	s, err := scanServer(row)
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("get server %q", name), err)
	}
	return s, nil
}

// ListServers returns servers matching filter, ordered by name then ID.
func (r *SQLiteRepository) ListServers(ctx context.Context, filter ServerFilter) ([]domain.Server, error) {
	query := `SELECT ` + serverColumns + ` FROM servers WHERE 1 = 1`
	var args []any
	if filter.EnvironmentID != 0 {
		query += ` AND environment_id = ?`
		args = append(args, filter.EnvironmentID)
	}
	if filter.ProviderID != 0 {
		query += ` AND provider_id = ?`
		args = append(args, filter.ProviderID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY name, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("list servers", err)
	}
	defer rows.Close()

	var out []domain.Server
	for rows.Next() {
		s, err := scanServer(rows)
		if err != nil {
			return nil, wrapErr("list servers", err)
		}
		out = append(out, *s)
	}
	return out, wrapErr("list servers", rows.Err())
}

// UpdateServerStatus moves a server to a new lifecycle status.
func (r *SQLiteRepository) UpdateServerStatus(ctx context.Context, id int64, status domain.ServerStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE servers SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), formatTime(r.now()), id)
	if err != nil {
		return wrapErr("update server status", err)
	}
	return checkAffected("update server status", fmt.Sprintf("server %d", id), res)
}

// SetFirewallSnapshot records where the host's last applied ruleset lives.
func (r *SQLiteRepository) SetFirewallSnapshot(ctx context.Context, id int64, path string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE servers SET firewall_snapshot = ?, updated_at = ? WHERE id = ?`,
		path, formatTime(r.now()), id)
	if err != nil {
		return wrapErr("set firewall snapshot", err)
	}
	return checkAffected("set firewall snapshot", fmt.Sprintf("server %d", id), res)
}

// DeleteServer removes the server row.
func (r *SQLiteRepository) DeleteServer(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM servers WHERE id = ?`, id)
	if err != nil {
		return wrapErr("delete server", err)
	}
	return checkAffected("delete server", fmt.Sprintf("server %d", id), res)
}

// CreateAddress inserts an address for an existing server.
func (r *SQLiteRepository) CreateAddress(ctx context.Context, a *domain.Address) error {
	ok, err := r.exists(ctx, "servers", a.ServerID)
	if err != nil {
		return wrapErr("create address", err)
	}
	if !ok {
		return notFound("create address", fmt.Sprintf("server %d", a.ServerID))
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO addresses (server_id, ip, family, visibility) VALUES (?, ?, ?, ?)`,
		a.ServerID, a.IP, string(a.Family), string(a.Visibility))
	if err != nil {
		return wrapErr("create address", err)
	}
	a.ID, err = res.LastInsertId()
	return wrapErr("create address", err)
}

// ListAddresses returns a server's addresses ordered by ID.
func (r *SQLiteRepository) ListAddresses(ctx context.Context, serverID int64) ([]domain.Address, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, server_id, ip, family, visibility FROM addresses WHERE server_id = ? ORDER BY id`, serverID)
	if err != nil {
		return nil, wrapErr("list addresses", err)
	}
	defer rows.Close()

	var out []domain.Address
	for rows.Next() {
		var a domain.Address
		var family, visibility string
		if err := rows.Scan(&a.ID, &a.ServerID, &a.IP, &family, &visibility); err != nil {
			return nil, wrapErr("list addresses", err)
		}
		a.Family = domain.Family(family)
		a.Visibility = domain.Visibility(visibility)
		out = append(out, a)
	}
	return out, wrapErr("list addresses", rows.Err())
}

// DeleteAddress removes an address row.
func (r *SQLiteRepository) DeleteAddress(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM addresses WHERE id = ?`, id)
	if err != nil {
		return wrapErr("delete address", err)
	}
	return checkAffected("delete address", fmt.Sprintf("address %d", id), res)
}

// CreateDNSRecord inserts a DNS record row for an existing address.
func (r *SQLiteRepository) CreateDNSRecord(ctx context.Context, rec *domain.DNSRecord) error {
	ok, err := r.exists(ctx, "addresses", rec.AddressID)
	if err != nil {
		return wrapErr("create dns record", err)
	}
	if !ok {
		return notFound("create dns record", fmt.Sprintf("address %d", rec.AddressID))
	}

	res, err := r.db.ExecContext(ctx, `
        INSERT INTO dns_records (address_id, domain_id, name, type, data, ttl, provider_record_id)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.AddressID, rec.DomainID, rec.Name, rec.Type, rec.Data, rec.TTL, rec.ProviderRecordID)
	if err != nil {
		return wrapErr("create dns record", err)
	}
	rec.ID, err = res.LastInsertId()
	return wrapErr("create dns record", err)
}

// ListDNSRecords returns the DNS records owned by an address.
func (r *SQLiteRepository) ListDNSRecords(ctx context.Context, addressID int64) ([]domain.DNSRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT id, address_id, domain_id, name, type, data, ttl, provider_record_id
        FROM dns_records WHERE address_id = ? ORDER BY id`, addressID)
	if err != nil {
		return nil, wrapErr("list dns records", err)
	}
	defer rows.Close()

	var out []domain.DNSRecord
	for rows.Next() {
		var rec domain.DNSRecord
		if err := rows.Scan(&rec.ID, &rec.AddressID, &rec.DomainID, &rec.Name, &rec.Type,
			&rec.Data, &rec.TTL, &rec.ProviderRecordID); err != nil {
			return nil, wrapErr("list dns records", err)
		}
		out = append(out, rec)
	}
	return out, wrapErr("list dns records", rows.Err())
}

// DeleteDNSRecord removes a DNS record row.
func (r *SQLiteRepository) DeleteDNSRecord(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM dns_records WHERE id = ?`, id)
	if err != nil {
		return wrapErr("delete dns record", err)
	}
	return checkAffected("delete dns record", fmt.Sprintf("dns record %d", id), res)
}

// LoadHost joins a server with its environment, addresses and services.
func (r *SQLiteRepository) LoadHost(ctx context.Context, serverID int64) (*domain.Host, error) {
	s, err := r.GetServer(ctx, serverID)
	if err != nil {
		return nil, err
	}
	return r.hydrate(ctx, *s)
}

// LoadFleet returns every server in the inventory as a Host. Servers being
// destroyed are skipped since they no longer take part in fleet policy.
func (r *SQLiteRepository) LoadFleet(ctx context.Context) ([]domain.Host, error) {
	servers, err := r.ListServers(ctx, ServerFilter{})
	if err != nil {
		return nil, err
	}

	hosts := make([]domain.Host, 0, len(servers))
	for _, s := range servers {
		if s.Status == domain.ServerDecommissioning || s.Status == domain.ServerDestroyed {
			continue
		}
		h, err := r.hydrate(ctx, s)
		if err != nil {
			return nil, err
		}
		hosts = append(hosts, *h)
	}
	return hosts, nil
}

func (r *SQLiteRepository) hydrate(ctx context.Context, s domain.Server) (*domain.Host, error) {
	env, err := r.GetEnvironment(ctx, s.EnvironmentID)
	if err != nil {
		return nil, err
	}
	addrs, err := r.ListAddresses(ctx, s.ID)
	if err != nil {
		return nil, err
	}
	svcs, err := r.ListServerServices(ctx, s.ID)
	if err != nil {
		return nil, err
	}
	return &domain.Host{Server: s, Environment: *env, Addresses: addrs, Services: svcs}, nil
}

func scanServer(s scanner) (*domain.Server, error) {
	var srv domain.Server
	var status, created, updated string
	err := s.Scan(&srv.ID, &srv.Name, &status, &srv.EnvironmentID, &srv.ProviderID, &srv.ProviderRecordID,
		&srv.Image, &srv.Size, &srv.Location, &srv.FirewallSnapshot, &created, &updated)
	if err != nil {
		return nil, err
	}
	srv.Status = domain.ServerStatus(status)
	srv.CreatedAt = parseTime(created)
	srv.UpdatedAt = parseTime(updated)
	return &srv, nil
}
