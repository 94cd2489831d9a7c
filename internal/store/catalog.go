package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"devicehub-api/internal/apperr"
	"devicehub-api/internal/dbx"
	"devicehub-api/internal/models"
)

// catalogRepo serves the lookups the device service needs inside its transaction.
type catalogRepo struct {
	db dbx.DBTX
}

// Validate checks that modelID exists, typeID exists and the model belongs to the type.
func (r *catalogRepo) Validate(ctx context.Context, modelID, typeID int64) error {
	var modelTypeID int64
	var typeExists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT m.type_id, EXISTS (SELECT 1 FROM device_types WHERE id = $2)
		FROM device_models m WHERE m.id = $1`, modelID, typeID).Scan(&modelTypeID, &typeExists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound(apperr.CodeDeviceModelNotFound, fmt.Sprintf("device model %d not found", modelID))
		}
		return translate(err, "validate device model")
	}
	if !typeExists {
		return apperr.NotFound(apperr.CodeDeviceTypeNotFound, fmt.Sprintf("device type %d not found", typeID))
	}
	if modelTypeID != typeID {
		return apperr.Conflict(apperr.CodeModelNotOfType, fmt.Sprintf("device model %d does not belong to type %d", modelID, typeID))
	}
	return nil
}

func (r *catalogRepo) LookupUser(ctx context.Context, id int64) (*models.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *catalogRepo) LookupOwner(ctx context.Context, id int64) (*models.Owner, error) {
	var o models.Owner
	err := r.db.QueryRowContext(ctx, `SELECT id, name, created_at FROM owners WHERE id = $1`, id).
		Scan(&o.ID, &o.Name, &o.CreatedAt)
	if err != nil {
		return nil, translate(err, "lookup owner")
	}
	return &o, nil
}

type repairRepo struct {
	db dbx.DBTX
}

func (r *repairRepo) CountByDevice(ctx context.Context, deviceID int64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM device_repair_history WHERE device_id = $1`, deviceID).Scan(&n)
	return n, translate(err, "count repairs")
}

const userColumns = `id, email, password_hash, first_name, last_name, roles, is_active, created_at, updated_at, last_login_at`

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	var roles pq.StringArray
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &roles,
		&u.IsActive, &u.CreatedAt, &u.UpdatedAt, &u.LastLoginAt); err != nil {
		return nil, translate(err, "scan user")
	}
	u.Roles = []string(roles)
	return &u, nil
}

// FindUserByEmail supports login.
func (s *Store) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

// TouchLastLogin records a successful login.
func (s *Store) TouchLastLogin(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET last_login_at = now() WHERE id = $1`, userID)
	return translate(err, "touch last login")
}

// SetPassword replaces a user's password hash.
func (s *Store) SetPassword(ctx context.Context, email, hash string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash = $1, updated_at = now() WHERE email = $2`, hash, email)
	if err != nil {
		return translate(err, "set password")
	}
	return expectOneRow(res, "set password")
}

func (s *Store) ListTypes(ctx context.Context) ([]models.DeviceType, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, created_at FROM device_types ORDER BY name`)
	if err != nil {
		return nil, translate(err, "list device types")
	}
	defer rows.Close()

	out := []models.DeviceType{}
	for rows.Next() {
		var t models.DeviceType
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt); err != nil {
			return nil, translate(err, "scan device type")
		}
		out = append(out, t)
	}
	return out, translate(rows.Err(), "list device types")
}

// ListModels returns every model, or those of typeID when it is non-zero.
func (s *Store) ListModels(ctx context.Context, typeID int64) ([]models.DeviceModel, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type_id, name, created_at FROM device_models
		WHERE ($1::bigint = 0 OR type_id = $1)
		ORDER BY name`, typeID)
	if err != nil {
		return nil, translate(err, "list device models")
	}
	defer rows.Close()

	out := []models.DeviceModel{}
	for rows.Next() {
		var m models.DeviceModel
		if err := rows.Scan(&m.ID, &m.TypeID, &m.Name, &m.CreatedAt); err != nil {
			return nil, translate(err, "scan device model")
		}
		out = append(out, m)
	}
	return out, translate(rows.Err(), "list device models")
}

func (s *Store) ListOwners(ctx context.Context) ([]models.Owner, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, created_at FROM owners ORDER BY name`)
	if err != nil {
		return nil, translate(err, "list owners")
	}
	defer rows.Close()

	out := []models.Owner{}
	for rows.Next() {
		var o models.Owner
		if err := rows.Scan(&o.ID, &o.Name, &o.CreatedAt); err != nil {
			return nil, translate(err, "scan owner")
		}
		out = append(out, o)
	}
	return out, translate(rows.Err(), "list owners")
}

func (s *Store) GetModel(ctx context.Context, id int64) (*models.DeviceModel, error) {
	var m models.DeviceModel
	err := s.db.QueryRowContext(ctx, `SELECT id, type_id, name, created_at FROM device_models WHERE id = $1`, id).
		Scan(&m.ID, &m.TypeID, &m.Name, &m.CreatedAt)
	if err != nil {
		return nil, translate(err, "get device model")
	}
	return &m, nil
}

// DeleteModel deletes a model. A device still referencing it surfaces as the
// foreign key violation translated to CANNOT_DELETE_MODEL_WHEN_HAS_DEVICES.
func (s *Store) DeleteModel(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM device_models WHERE id = $1`, id)
	if err != nil {
		return translate(err, "delete device model")
	}
	return expectOneRow(res, "delete device model")
}

// CountByModel serves catalog.DeviceCountByModel.
func (s *Store) CountByModel(ctx context.Context, modelID int64) (int, error) {
	return s.Reader().Devices().CountByModel(ctx, modelID)
}
