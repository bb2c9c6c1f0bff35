package inventory

import (
	"context"
	"fmt"

	"nathanbeddoewebdev/fleet/internal/domain"
)

const environmentColumns = `id, name, branch, public_domain_id, private_domain_id, created_at`

// CreateEnvironment inserts an environment. Both of its domains must exist.
// An empty branch defaults to the environment name.
func (r *SQLiteRepository) CreateEnvironment(ctx context.Context, e *domain.Environment) error {
	for _, id := range []int64{e.PublicDomainID, e.PrivateDomainID} {
		ok, err := r.exists(ctx, "domains", id)
		if err != nil {
			return wrapErr("create environment", err)
		}
		if !ok {
			return notFound("create environment", fmt.Sprintf("domain %d", id))
		}
	}

	if e.Branch == "" {
		e.Branch = e.Name
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.now()
	}
	res, err := r.db.ExecContext(ctx, `
        INSERT INTO environments (name, branch, public_domain_id, private_domain_id, created_at)
        VALUES (?, ?, ?, ?, ?)`,
		e.Name, e.Branch, e.PublicDomainID, e.PrivateDomainID, formatTime(e.CreatedAt))
	if err != nil {
		return wrapErr("create environment", err)
	}
	e.ID, err = res.LastInsertId()
	return wrapErr("create environment", err)
}

// GetEnvironment returns the environment with the given ID.
func (r *SQLiteRepository) GetEnvironment(ctx context.Context, id int64) (*domain.Environment, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+environmentColumns+` FROM environments WHERE id = ?`, id)
	e, err := scanEnvironment(row)
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("get environment %d", id), err)
	}
	return e, nil
}

// GetEnvironmentByName returns the environment with the given name.
func (r *SQLiteRepository) GetEnvironmentByName(ctx context.Context, name string) (*domain.Environment, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+environmentColumns+` FROM environments WHERE name = ?`, name)
	e, err := scanEnvironment(row)
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("get environment %q", name), err)
	}
	return e, nil
}

// ListEnvironments returns all environments ordered by name.
func (r *SQLiteRepository) ListEnvironments(ctx context.Context) ([]domain.Environment, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+environmentColumns+` FROM environments ORDER BY name`)
	if err != nil {
		return nil, wrapErr("list environments", err)
	}
	defer rows.Close()

	var out []domain.Environment
	for rows.Next() {
		e, err := scanEnvironment(rows)
		if err != nil {
			return nil, wrapErr("list environments", err)
		}
		out = append(out, *e)
	}
	return out, wrapErr("list environments", rows.Err())
}

// CreateService inserts a service definition.
func (r *SQLiteRepository) CreateService(ctx context.Context, s *domain.Service) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO services (name, kind, does_reload, service_name) VALUES (?, ?, ?, ?)`,
		s.Name, string(s.Kind), s.DoesReload, s.ServiceName)
	if err != nil {
		return wrapErr("create service", err)
	}
	s.ID, err = res.LastInsertId()
	return wrapErr("create service", err)
}

// GetServiceByName returns the service with the given friendly name.
func (r *SQLiteRepository) GetServiceByName(ctx context.Context, name string) (*domain.Service, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, kind, does_reload, service_name FROM services WHERE name = ?`, name)
	s, err := scanService(row)
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("get service %q", name), err)
	}
	return s, nil
}

// ListServices returns all service definitions ordered by name.
func (r *SQLiteRepository) ListServices(ctx context.Context) ([]domain.Service, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, kind, does_reload, service_name FROM services ORDER BY name`)
	if err != nil {
		return nil, wrapErr("list services", err)
	}
	defer rows.Close()

	var out []domain.Service
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, wrapErr("list services", err)
		}
		out = append(out, *s)
	}
	return out, wrapErr("list services", rows.Err())
}

// AttachService associates a service with a server. Attaching twice is a no-op.
func (r *SQLiteRepository) AttachService(ctx context.Context, serverID, serviceID int64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO server_services (server_id, service_id) VALUES (?, ?)`,
		serverID, serviceID)
	return wrapErr("attach service", err)
}

// ClearServices removes every service association of a server.
func (r *SQLiteRepository) ClearServices(ctx context.Context, serverID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM server_services WHERE server_id = ?`, serverID)
	return wrapErr("clear services", err)
}

// ListServerServices returns the services attached to a server.
func (r *SQLiteRepository) ListServerServices(ctx context.Context, serverID int64) ([]domain.Service, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT s.id, s.name, s.kind, s.does_reload, s.service_name
        FROM services s JOIN server_services ss ON ss.service_id = s.id
        WHERE ss.server_id = ? ORDER BY s.name`, serverID)
	if err != nil {
		return nil, wrapErr("list server services", err)
	}
	defer rows.Close()

	var out []domain.Service
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, wrapErr("list server services", err)
		}
		out = append(out, *s)
	}
	return out, wrapErr("list server services", rows.Err())
}

func scanEnvironment(s scanner) (*domain.Environment, error) {
	var e domain.Environment
	var created string
	if err := s.Scan(&e.ID, &e.Name, &e.Branch, &e.PublicDomainID, &e.PrivateDomainID, &created); err != nil {
		return nil, err
	}
	e.CreatedAt = parseTime(created)
	return &e, nil
}

func scanService(s scanner) (*domain.Service, error) {
	var svc domain.Service
	var kind string
	if err := s.Scan(&svc.ID, &svc.Name, &kind, &svc.DoesReload, &svc.ServiceName); err != nil {
		return nil, err
	}
	svc.Kind = domain.ServiceKind(kind)
	return &svc, nil
}
