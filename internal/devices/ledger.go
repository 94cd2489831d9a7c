package devices

import (
	"context"
	"errors"
	"fmt"
	"time"

	"devicehub-api/internal/apperr"
	"devicehub-api/internal/models"
)

// ledgerChange records what a mutation did to the ledger.
type ledgerChange struct {
	closed *models.DeviceAssignment
	opened *models.DeviceAssignment
}

// reconcileLedger moves the device's ledger to match holder. An open record for
// a different user is closed at now, and a new record is opened for holder
// unless one is already open for that user. now is raised to the open record's
// AssignedAt when it lags behind it.
func reconcileLedger(ctx context.Context, repo AssignmentRepository, deviceID int64, holder *int64, now time.Time) (ledgerChange, error) {
	var change ledgerChange

	open, err := repo.FindOpen(ctx, deviceID)
	switch {
	case errors.Is(err, apperr.ErrNoRows):
		open = nil
	case err != nil:
		return change, fmt.Errorf("find open assignment: %w", err)
	}

	if open != nil && holder != nil && open.UserID == *holder {
		return change, nil
	}

	if open != nil && now.Before(open.AssignedAt) {
		// Another writer's clock ran ahead; a record never closes before it opened.
		now = open.AssignedAt
	}

	if open != nil {
		if err := repo.Close(ctx, open.ID, now); err != nil {
			return change, fmt.Errorf("close assignment %d: %w", open.ID, err)
		}
		returned := now
		open.ReturnedAt = &returned
		change.closed = open
	}

	if holder != nil {
		a := &models.DeviceAssignment{
			DeviceID:   deviceID,
			UserID:     *holder,
			AssignedAt: now,
			CreatedAt:  now,
		}
		if err := repo.Open(ctx, a); err != nil {
			return change, fmt.Errorf("open assignment: %w", err)
		}
		change.opened = a
	}
	return change, nil
}
