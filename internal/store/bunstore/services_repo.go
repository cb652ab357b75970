package bunstore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	"chairbook/internal/domain"
	"chairbook/internal/store"
)

type serviceQueries struct {
	db bun.IDB
}

func (q serviceQueries) GetService(ctx context.Context, id string) (domain.Service, error) {
	var s domain.Service
	err := q.db.NewSelect().
		Model(&s).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Service{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Service{}, store.Wrap("get service", err)
	}
	return s, nil
}

func (q serviceQueries) ListServices(ctx context.Context, includeInactive bool) ([]domain.Service, error) {
	var rows []domain.Service
	sel := q.db.NewSelect().Model(&rows)
	if !includeInactive {
		sel = sel.Where("active = ?", true)
	}
	if err := sel.OrderExpr("name ASC, id ASC").Scan(ctx); err != nil {
		return nil, store.Wrap("list services", err)
	}
	return rows, nil
}

type ServiceRepo struct {
	serviceQueries
}

func NewServiceRepo(db *bun.DB) *ServiceRepo {
	return &ServiceRepo{serviceQueries: serviceQueries{db: db}}
}

func (r *ServiceRepo) CreateService(ctx context.Context, s domain.Service) (domain.Service, error) {
	m := s
	if _, err := r.db.NewInsert().Model(&m).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return domain.Service{}, store.ErrDuplicate
		}
		return domain.Service{}, store.Wrap("create service", err)
	}
	return m, nil
}

func (r *ServiceRepo) UpdateService(ctx context.Context, s domain.Service) (domain.Service, error) {
	m := s
	res, err := r.db.NewUpdate().
		Model(&m).
		Column("name", "price_minor_units", "duration_minutes", "active").
		WherePK().
		Exec(ctx)
	if err != nil {
		return domain.Service{}, store.Wrap("update service", err)
	}
	if err := expectAffected(res); err != nil {
		return domain.Service{}, err
	}
	return m, nil
}

func (r *ServiceRepo) DeactivateService(ctx context.Context, id string) error {
	res, err := r.db.NewUpdate().
		Model((*domain.Service)(nil)).
		Set("active = ?", false).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return store.Wrap("deactivate service", err)
	}
	return expectAffected(res)
}

func expectAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return store.Wrap("rows affected", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}
