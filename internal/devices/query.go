package devices

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"devicehub-api/internal/apperr"
	"devicehub-api/internal/models"
)

// GetDeviceDetails returns a device with the names of everything it references.
func (s *Service) GetDeviceDetails(ctx context.Context, id int64) (*models.DeviceView, error) {
	v, err := s.store.Reader().Devices().GetView(ctx, id)
	if err != nil {
		return nil, notFoundAs(err, apperr.CodeDeviceNotFound, fmt.Sprintf("device %d not found", id))
	}
	return v, nil
}

// ListDevices returns one page of devices matching f. By default assigned
// devices come first, newest first within each group.
func (s *Service) ListDevices(ctx context.Context, f models.DeviceFilter, p models.PageRequest) (models.Page[models.DeviceView], error) {
	p = p.Normalized()
	if f.AssigneeOrder != models.SortAsc {
		f.AssigneeOrder = models.SortDesc
	}
	for _, st := range f.Statuses {
		if !st.Valid() {
			return models.Page[models.DeviceView]{}, apperr.InvalidField("status", "oneof", fmt.Sprintf("unknown status %q", st))
		}
	}

	rows, total, err := s.store.Reader().Devices().List(ctx, f, p)
	if err != nil {
		return models.Page[models.DeviceView]{}, err
	}
	return models.NewPage(rows, p, total), nil
}

// ListAssignmentHistory returns one page of ledger records. A non-zero
// deviceID limits the page to that device, intersected with f.DeviceIDs. Records match the date range when
// [AssignedAt, ReturnedAt or now] overlaps [From, To].
func (s *Service) ListAssignmentHistory(ctx context.Context, deviceID int64, f models.AssignmentFilter, p models.PageRequest) (models.Page[models.DeviceAssignmentView], error) {
	p = p.Normalized()
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return models.Page[models.DeviceAssignmentView]{}, apperr.InvalidField("to", "gtefield", "'to' must not be before 'from'")
	}
	if deviceID != 0 {
		if len(f.DeviceIDs) > 0 && !slices.Contains(f.DeviceIDs, deviceID) {
			return models.NewPage[models.DeviceAssignmentView](nil, p, 0), nil
		}
		f.DeviceIDs = []int64{deviceID}
	}

	rows, total, err := s.store.Reader().Assignments().List(ctx, f, p, s.now().UTC())
	if err != nil {
		return models.Page[models.DeviceAssignmentView]{}, err
	}
	return models.NewPage(rows, p, total), nil
}

// GetOpenAssignmentForUser returns assignment assignmentID if userID still holds it.
func (s *Service) GetOpenAssignmentForUser(ctx context.Context, userID, assignmentID int64) (*models.DeviceAssignment, error) {
	a, err := s.store.Reader().Assignments().Get(ctx, assignmentID)
	if errors.Is(err, apperr.ErrNoRows) || (err == nil && a.UserID != userID) {
		return nil, apperr.NotFound(apperr.CodeDeviceAssignmentNotFound,
			fmt.Sprintf("assignment %d not found for user %d", assignmentID, userID))
	}
	if err != nil {
		return nil, err
	}
	if !a.IsOpen() {
		return nil, apperr.BadRequest(apperr.CodeAssignmentAlreadyReturned,
			fmt.Sprintf("assignment %d was already returned", assignmentID))
	}
	return a, nil
}
