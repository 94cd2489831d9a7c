package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"devicehub-api/internal/apperr"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// translate maps driver errors onto the typed errors the services expect.
// Constraint violations become the same errors the service pre-checks produce.
func translate(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.ErrNoRows
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == "devices_code_key":
			return apperr.BadRequest(apperr.CodeDeviceCodeExists, "device code is already in use")
		case pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == "device_assignment_history_open_key":
			return apperr.Conflict(apperr.CodeAssignmentAlreadyOpen, "device already has an open assignment")
		case pgErr.Code == pgCheckViolation && pgErr.ConstraintName == "devices_scrapped_unassigned":
			return apperr.BadRequest(apperr.CodeScrappedWithAssignee, "a scrapped device cannot have an assignee")
		case pgErr.Code == pgForeignKeyViolation && pgErr.ConstraintName == "devices_model_id_fkey":
			return apperr.BadRequest(apperr.CodeDeleteModelWithDevices, "device model is still referenced")
		case pgErr.Code == pgForeignKeyViolation && pgErr.TableName == "device_assignment_history":
			return apperr.BadRequest(apperr.CodeDeleteWithAssignHistory, "device has assignment history")
		case pgErr.Code == pgForeignKeyViolation && pgErr.TableName == "device_repair_history":
			return apperr.BadRequest(apperr.CodeDeleteWithRepairHistory, "device has repair history")
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
