package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/alarm-messenger/relay-server-go/internal/database"
	"github.com/alarm-messenger/relay-server-go/internal/model"
)

type ResponseRepository interface {
	// Upsert records a participation answer. Answering again overwrites
	// the previous answer for the same device.
	Upsert(ctx context.Context, params model.SubmitResponseParams) (*model.Response, error)
	ListDetails(ctx context.Context, emergencyID string) ([]model.ResponseDetail, error)
	ListParticipants(ctx context.Context, emergencyID string) ([]model.ResponseDetail, error)
}

type responseRepo struct {
	db database.DBTX
}

func NewResponseRepository(db *sqlx.DB) ResponseRepository {
	return &responseRepo{db: db}
}

func (r *responseRepo) Upsert(ctx context.Context, params model.SubmitResponseParams) (*model.Response, error) {
	var resp model.Response
	err := r.db.GetContext(ctx, &resp, `
		INSERT INTO responses (id, emergency_id, device_id, participating)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (emergency_id, device_id) DO UPDATE SET
			participating = EXCLUDED.participating,
			responded_at = NOW()
		RETURNING *
	`, params.ID, params.EmergencyID, params.DeviceID, params.Participating)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

const responseDetailQuery = `
	SELECT
		r.id, r.emergency_id, r.device_id, r.participating, r.responded_at,
		d.platform, d.first_name, d.last_name,
		d.qual_machinist, d.qual_agt, d.qual_paramedic, d.leadership_role
	FROM responses r
	INNER JOIN devices d ON d.id = r.device_id
	WHERE r.emergency_id = $1`

func (r *responseRepo) ListDetails(ctx context.Context, emergencyID string) ([]model.ResponseDetail, error) {
	details := []model.ResponseDetail{}
	err := r.db.SelectContext(ctx, &details, responseDetailQuery+`
	ORDER BY r.responded_at ASC
	`, emergencyID)
	if err != nil {
		return nil, err
	}
	return details, nil
}

func (r *responseRepo) ListParticipants(ctx context.Context, emergencyID string) ([]model.ResponseDetail, error) {
	details := []model.ResponseDetail{}
	err := r.db.SelectContext(ctx, &details, responseDetailQuery+`
	AND r.participating
	ORDER BY r.responded_at ASC
	`, emergencyID)
	if err != nil {
		return nil, err
	}
	return details, nil
}
