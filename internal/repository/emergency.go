package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/alarm-messenger/relay-server-go/internal/database"
	"github.com/alarm-messenger/relay-server-go/internal/model"
)

type EmergencyRepository interface {
	Create(ctx context.Context, params model.CreateEmergencyParams) (*model.Emergency, error)
	FindByID(ctx context.Context, id string) (*model.Emergency, error)
	List(ctx context.Context, includeInactive bool, limit, offset int) ([]model.Emergency, error)
	Count(ctx context.Context, includeInactive bool) (int, error)
	FindActiveCreatedBefore(ctx context.Context, cutoff time.Time) ([]model.Emergency, error)
	// Deactivate flips active to false. It reports false when the record
	// is unknown or was already inactive.
	Deactivate(ctx context.Context, id string, at time.Time) (bool, error)
}

type emergencyRepo struct {
	db database.DBTX
}

func NewEmergencyRepository(db *sqlx.DB) EmergencyRepository {
	return &emergencyRepo{db: db}
}

func (r *emergencyRepo) Create(ctx context.Context, params model.CreateEmergencyParams) (*model.Emergency, error) {
	var groups pq.StringArray
	if len(params.Groups) > 0 {
		groups = pq.StringArray(params.Groups)
	}

	var e model.Emergency
	err := r.db.GetContext(ctx, &e, `
		INSERT INTO emergencies (
			id, emergency_number, emergency_date, emergency_keyword,
			emergency_description, emergency_location, groups, active, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, $8)
		RETURNING *
	`, params.ID, params.Number, params.Date, params.Keyword,
		params.Description, params.Location, groups, params.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *emergencyRepo) FindByID(ctx context.Context, id string) (*model.Emergency, error) {
	var e model.Emergency
	err := r.db.GetContext(ctx, &e, `SELECT * FROM emergencies WHERE id = $1`, id)
	return HandleNotFound(&e, err)
}

func (r *emergencyRepo) List(ctx context.Context, includeInactive bool, limit, offset int) ([]model.Emergency, error) {
	emergencies := []model.Emergency{}
	err := r.db.SelectContext(ctx, &emergencies, `
		SELECT * FROM emergencies
		WHERE active OR $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, includeInactive, limit, offset)
	if err != nil {
		return nil, err
	}
	return emergencies, nil
}

func (r *emergencyRepo) Count(ctx context.Context, includeInactive bool) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM emergencies WHERE active OR $1
	`, includeInactive)
	return count, err
}

func (r *emergencyRepo) FindActiveCreatedBefore(ctx context.Context, cutoff time.Time) ([]model.Emergency, error) {
	var emergencies []model.Emergency
	err := r.db.SelectContext(ctx, &emergencies, `
		SELECT * FROM emergencies
		WHERE active AND created_at < $1
		ORDER BY created_at ASC
	`, cutoff)
	if err != nil {
		return nil, err
	}
	return emergencies, nil
}

func (r *emergencyRepo) Deactivate(ctx context.Context, id string, at time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE emergencies SET
			active = FALSE,
			deactivated_at = $2
		WHERE id = $1 AND active
	`, id, at)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
