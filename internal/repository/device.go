package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/alarm-messenger/relay-server-go/internal/database"
	"github.com/alarm-messenger/relay-server-go/internal/model"
)

type DeviceRepository interface {
	// Upsert registers a device keyed by its device token. A known token
	// keeps its id and is reactivated.
	Upsert(ctx context.Context, params model.RegisterDeviceParams) (*model.Device, error)
	FindByID(ctx context.Context, id string) (*model.Device, error)
	FindByToken(ctx context.Context, deviceToken string) (*model.Device, error)
	List(ctx context.Context, limit, offset int) ([]model.Device, error)
	Count(ctx context.Context) (int, error)
	Deactivate(ctx context.Context, id string) (bool, error)
	ListActiveIDs(ctx context.Context) ([]string, error)
	ListActiveIDsInGroups(ctx context.Context, codes []string) ([]string, error)
}

type deviceRepo struct {
	db database.DBTX
}

func NewDeviceRepository(db *sqlx.DB) DeviceRepository {
	return &deviceRepo{db: db}
}

func (r *deviceRepo) Upsert(ctx context.Context, params model.RegisterDeviceParams) (*model.Device, error) {
	var d model.Device
	err := r.db.GetContext(ctx, &d, `
		INSERT INTO devices (
			id, device_token, registration_token, platform, active,
			first_name, last_name, qual_machinist, qual_agt, qual_paramedic, leadership_role
		)
		VALUES ($1, $2, $3, $4, TRUE, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (device_token) DO UPDATE SET
			registration_token = EXCLUDED.registration_token,
			platform = EXCLUDED.platform,
			active = TRUE,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			qual_machinist = EXCLUDED.qual_machinist,
			qual_agt = EXCLUDED.qual_agt,
			qual_paramedic = EXCLUDED.qual_paramedic,
			leadership_role = EXCLUDED.leadership_role
		RETURNING *
	`, params.ID, params.DeviceToken, params.RegistrationToken, params.Platform,
		params.FirstName, params.LastName,
		params.Qualifications.Machinist, params.Qualifications.AGT, params.Qualifications.Paramedic,
		params.LeadershipRole)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *deviceRepo) FindByID(ctx context.Context, id string) (*model.Device, error) {
	var d model.Device
	err := r.db.GetContext(ctx, &d, `SELECT * FROM devices WHERE id = $1`, id)
	return HandleNotFound(&d, err)
}

func (r *deviceRepo) FindByToken(ctx context.Context, deviceToken string) (*model.Device, error) {
	var d model.Device
	err := r.db.GetContext(ctx, &d, `SELECT * FROM devices WHERE device_token = $1`, deviceToken)
	return HandleNotFound(&d, err)
}

func (r *deviceRepo) List(ctx context.Context, limit, offset int) ([]model.Device, error) {
	devices := []model.Device{}
	err := r.db.SelectContext(ctx, &devices, `
		SELECT * FROM devices
		ORDER BY registered_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	return devices, nil
}

func (r *deviceRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM devices`)
	return count, err
}

func (r *deviceRepo) Deactivate(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE devices SET active = FALSE WHERE id = $1 AND active
	`, id)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *deviceRepo) ListActiveIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.SelectContext(ctx, &ids, `
		SELECT id FROM devices WHERE active ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *deviceRepo) ListActiveIDsInGroups(ctx context.Context, codes []string) ([]string, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	var ids []string
	err := r.db.SelectContext(ctx, &ids, `
		SELECT DISTINCT d.id
		FROM devices d
		INNER JOIN device_groups dg ON dg.device_id = d.id
		WHERE d.active AND dg.group_code = ANY($1)
		ORDER BY d.id
	`, pq.Array(codes))
	if err != nil {
		return nil, err
	}
	return ids, nil
}
