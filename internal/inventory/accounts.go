package inventory

import (
	"context"
	"fmt"

	"nathanbeddoewebdev/fleet/internal/domain"
)

// CreateProvider inserts a provider and assigns its ID.
func (r *SQLiteRepository) CreateProvider(ctx context.Context, p *domain.Provider) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = r.now()
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO providers (name, compute, dns, created_at) VALUES (?, ?, ?, ?)`,
		p.Name, p.Compute, p.DNS, formatTime(p.CreatedAt))
	if err != nil {
		return wrapErr("create provider", err)
	}
	p.ID, err = res.LastInsertId()
	return wrapErr("create provider", err)
}

// GetProvider returns the provider with the given ID.
func (r *SQLiteRepository) GetProvider(ctx context.Context, id int64) (*domain.Provider, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, compute, dns, created_at FROM providers WHERE id = ?`, id)
	p, err := scanProvider(row)
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("get provider %d", id), err)
	}
	return p, nil
}

// GetProviderByName returns the provider with the given name.
func (r *SQLiteRepository) GetProviderByName(ctx context.Context, name string) (*domain.Provider, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, compute, dns, created_at FROM providers WHERE name = ?`, name)
	p, err := scanProvider(row)
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("get provider %q", name), err)
	}
	return p, nil
}

// ListProviders returns all providers ordered by name.
func (r *SQLiteRepository) ListProviders(ctx context.Context) ([]domain.Provider, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, compute, dns, created_at FROM providers ORDER BY name`)
	if err != nil {
		return nil, wrapErr("list providers", err)
	}
	defer rows.Close()

	var out []domain.Provider
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, wrapErr("list providers", err)
		}
		out = append(out, *p)
	}
	return out, wrapErr("list providers", rows.Err())
}

// CreateDomain inserts a domain. The owning provider must exist.
func (r *SQLiteRepository) CreateDomain(ctx context.Context, d *domain.Domain) error {
	ok, err := r.exists(ctx, "providers", d.ProviderID)
	if err != nil {
		return wrapErr("create domain", err)
	}
	if !ok {
		return notFound("create domain", fmt.Sprintf("provider %d", d.ProviderID))
	}

	if d.CreatedAt.IsZero() {
		d.CreatedAt = r.now()
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO domains (name, provider_id, provider_record_id, created_at) VALUES (?, ?, ?, ?)`,
		d.Name, d.ProviderID, d.ProviderRecordID, formatTime(d.CreatedAt))
	if err != nil {
		return wrapErr("create domain", err)
	}
	d.ID, err = res.LastInsertId()
	return wrapErr("create domain", err)
}

// GetDomain returns the domain with the given ID.
func (r *SQLiteRepository) GetDomain(ctx context.Context, id int64) (*domain.Domain, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, provider_id, provider_record_id, created_at FROM domains WHERE id = ?`, id)
	d, err := scanDomain(row)
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("get domain %d", id), err)
	}
	return d, nil
}

// GetDomainByName returns the domain with the given zone name.
func (r *SQLiteRepository) GetDomainByName(ctx context.Context, name string) (*domain.Domain, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, provider_id, provider_record_id, created_at FROM domains WHERE name = ?`, name)
	d, err := scanDomain(row)
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("get domain %q", name), err)
	}
	return d, nil
}

// ListDomains returns all domains ordered by name.
func (r *SQLiteRepository) ListDomains(ctx context.Context) ([]domain.Domain, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, provider_id, provider_record_id, created_at FROM domains ORDER BY name`)
	if err != nil {
		return nil, wrapErr("list domains", err)
	}
	defer rows.Close()

	var out []domain.Domain
	for rows.Next() {
		d, err := scanDomain(rows)
		if err != nil {
			return nil, wrapErr("list domains", err)
		}
		out = append(out, *d)
	}
	return out, wrapErr("list domains", rows.Err())
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProvider(s scanner) (*domain.Provider, error) {
	var p domain.Provider
	var created string
	if err := s.Scan(&p.ID, &p.Name, &p.Compute, &p.DNS, &created); err != nil {
		return nil, err
	}
	p.CreatedAt = parseTime(created)
	return &p, nil
}

func scanDomain(s scanner) (*domain.Domain, error) {
	var d domain.Domain
	var created string
	if err := s.Scan(&d.ID, &d.Name, &d.ProviderID, &d.ProviderRecordID, &created); err != nil {
		return nil, err
	}
	d.CreatedAt = parseTime(created)
	return &d, nil
}
