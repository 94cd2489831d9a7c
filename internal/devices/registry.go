package devices

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"devicehub-api/internal/apperr"
	"devicehub-api/internal/models"
)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// checkInput runs the checks that need no storage: struct tags, the status
// enum, the purchase date and the scrapped/assignee rule.
func (s *Service) checkInput(in *models.DeviceInput) error {
	in.Normalize()
	if err := s.validate.Struct(in); err != nil {
		return apperr.Validation(err)
	}
	if !in.Status.Valid() {
		return apperr.InvalidField("status", "oneof", fmt.Sprintf("status must be one of %v", models.ValidStatuses))
	}
	if in.PurchasedAt.IsZero() {
		return apperr.InvalidField("purchased_at", "required", "Field 'purchased_at' is required")
	}
	return nil
}

func checkScrapped(in *models.DeviceInput) error {
	if in.Status == models.StatusScrapped && in.UserID != nil {
		return apperr.BadRequest(apperr.CodeScrappedWithAssignee, "a scrapped device cannot have an assignee")
	}
	return nil
}

// checkReferences validates everything the input points at. existing is nil on create.
func checkReferences(ctx context.Context, r Repositories, in *models.DeviceInput, existing *models.Device) error {
	if err := r.Models().Validate(ctx, in.ModelID, in.TypeID); err != nil {
		return err
	}
	if err := checkScrapped(in); err != nil {
		return err
	}
	if in.OwnerID != nil {
		if _, err := r.Owners().LookupOwner(ctx, *in.OwnerID); err != nil {
			return notFoundAs(err, apperr.CodeOwnerNotFound, fmt.Sprintf("owner %d not found", *in.OwnerID))
		}
	}
	if in.UserID != nil && (existing == nil || !sameAssignee(existing.UserID, in.UserID)) {
		if _, err := r.Users().LookupUser(ctx, *in.UserID); err != nil {
			return notFoundAs(err, apperr.CodeUserNotFound, fmt.Sprintf("user %d not found", *in.UserID))
		}
	}
	return checkCodeUnique(ctx, r.Devices(), in.Code, existing)
}

// checkCodeUnique rejects a code already used by another device. Nil codes are
// exempt, and an update that keeps its code is not re-checked.
func checkCodeUnique(ctx context.Context, repo DeviceRepository, code *string, existing *models.Device) error {
	if code == nil {
		return nil
	}
	var excludeID int64
	if existing != nil {
		if existing.Code != nil && *existing.Code == *code {
			return nil
		}
		excludeID = existing.ID
	}
	taken, err := repo.ExistsByCode(ctx, *code, excludeID)
	if err != nil {
		return err
	}
	if taken {
		return errCodeExists(*code)
	}
	return nil
}

func errCodeExists(code string) *apperr.Error {
	return apperr.BadRequest(apperr.CodeDeviceCodeExists, fmt.Sprintf("device code %q is already in use", code))
}

func notFoundAs(err error, code, msg string) error {
	if errors.Is(err, apperr.ErrNoRows) {
		return apperr.NotFound(code, msg)
	}
	return err
}

func sameAssignee(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// CheckDevice runs every create-time check against current data without
// writing anything. Bulk imports use it for dry runs.
func (s *Service) CheckDevice(ctx context.Context, in models.DeviceInput) error {
	if err := s.checkInput(&in); err != nil {
		return err
	}
	return checkReferences(ctx, s.store.Reader(), &in, nil)
}
