package devices

import (
	"context"

	"devicehub-api/internal/apperr"
	"devicehub-api/internal/models"
)

// checkDeletable runs the delete preconditions in order; the first failure wins.
// Closed assignments block deletion as much as open ones do.
func checkDeletable(ctx context.Context, r Repositories, d *models.Device) error {
	if d.HasAssignee() {
		return apperr.BadRequest(apperr.CodeDeleteWithAssignee, "device is currently assigned")
	}

	n, err := r.Assignments().CountByDevice(ctx, d.ID)
	if err != nil {
		return err
	}
	if n != 0 {
		return apperr.BadRequest(apperr.CodeDeleteWithAssignHistory, "device has assignment history")
	}

	n, err = r.Repairs().CountByDevice(ctx, d.ID)
	if err != nil {
		return err
	}
	if n != 0 {
		return apperr.BadRequest(apperr.CodeDeleteWithRepairHistory, "device has repair history")
	}
	return nil
}
