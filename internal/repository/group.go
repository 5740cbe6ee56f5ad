package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/alarm-messenger/relay-server-go/internal/database"
	"github.com/alarm-messenger/relay-server-go/internal/model"
)

type GroupRepository interface {
	List(ctx context.Context) ([]model.Group, error)
	FindByCode(ctx context.Context, code string) (*model.Group, error)
	Create(ctx context.Context, params model.CreateGroupParams) (*model.Group, error)
	Update(ctx context.Context, code string, params model.UpdateGroupParams) (*model.Group, error)
	Delete(ctx context.Context, code string) (bool, error)
	ListByDevice(ctx context.Context, deviceID string) ([]model.Group, error)
	ListCodesByDevice(ctx context.Context, deviceID string) ([]string, error)
	// ReplaceDeviceGroups swaps a device's memberships. Callers run it in
	// a transaction via WithTx.
	ReplaceDeviceGroups(ctx context.Context, deviceID string, codes []string) error
	WithTx(tx *sqlx.Tx) GroupRepository
}

type groupRepo struct {
	db database.DBTX
}

func NewGroupRepository(db *sqlx.DB) GroupRepository {
	return &groupRepo{db: db}
}

func (r *groupRepo) WithTx(tx *sqlx.Tx) GroupRepository {
	return &groupRepo{db: tx}
}

func (r *groupRepo) List(ctx context.Context) ([]model.Group, error) {
	groups := []model.Group{}
	err := r.db.SelectContext(ctx, &groups, `SELECT * FROM groups ORDER BY code`)
	if err != nil {
		return nil, err
	}
	return groups, nil
}

func (r *groupRepo) FindByCode(ctx context.Context, code string) (*model.Group, error) {
	var g model.Group
	err := r.db.GetContext(ctx, &g, `SELECT * FROM groups WHERE code = $1`, code)
	return HandleNotFound(&g, err)
}

func (r *groupRepo) Create(ctx context.Context, params model.CreateGroupParams) (*model.Group, error) {
	var g model.Group
	err := r.db.GetContext(ctx, &g, `
		INSERT INTO groups (code, name, description)
		VALUES ($1, $2, $3)
		RETURNING *
	`, params.Code, params.Name, params.Description)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *groupRepo) Update(ctx context.Context, code string, params model.UpdateGroupParams) (*model.Group, error) {
	var g model.Group
	err := r.db.GetContext(ctx, &g, `
		UPDATE groups SET
			name = COALESCE($2, name),
			description = COALESCE($3, description)
		WHERE code = $1
		RETURNING *
	`, code, params.Name, params.Description)
	return HandleNotFound(&g, err)
}

func (r *groupRepo) Delete(ctx context.Context, code string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM groups WHERE code = $1`, code)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *groupRepo) ListByDevice(ctx context.Context, deviceID string) ([]model.Group, error) {
	groups := []model.Group{}
	err := r.db.SelectContext(ctx, &groups, `
		SELECT g.* FROM groups g
		INNER JOIN device_groups dg ON dg.group_code = g.code
		WHERE dg.device_id = $1
		ORDER BY g.code
	`, deviceID)
	if err != nil {
		return nil, err
	}
	return groups, nil
}

func (r *groupRepo) ListCodesByDevice(ctx context.Context, deviceID string) ([]string, error) {
	codes := []string{}
	err := r.db.SelectContext(ctx, &codes, `
		SELECT group_code FROM device_groups WHERE device_id = $1 ORDER BY group_code
	`, deviceID)
	if err != nil {
		return nil, err
	}
	return codes, nil
}

func (r *groupRepo) ReplaceDeviceGroups(ctx context.Context, deviceID string, codes []string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM device_groups WHERE device_id = $1`, deviceID); err != nil {
		return err
	}
	if len(codes) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO device_groups (device_id, group_code)
		SELECT $1, code FROM unnest($2::text[]) AS code
		ON CONFLICT DO NOTHING
	`, deviceID, pq.Array(codes))
	return err
}
