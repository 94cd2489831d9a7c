// Package catalog serves the device types, models and owners that devices
// reference. Deleting a model consults the device side only through the
// narrow DeviceCountByModel capability.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"devicehub-api/internal/apperr"
	"devicehub-api/internal/models"
)

// DeviceCountByModel counts devices that reference a model.
type DeviceCountByModel interface {
	CountByModel(ctx context.Context, modelID int64) (int, error)
}

// Store is the catalog persistence. Missing rows yield apperr.ErrNoRows.
type Store interface {
	ListTypes(ctx context.Context) ([]models.DeviceType, error)
	ListModels(ctx context.Context, typeID int64) ([]models.DeviceModel, error)
	ListOwners(ctx context.Context) ([]models.Owner, error)
	GetModel(ctx context.Context, id int64) (*models.DeviceModel, error)
	DeleteModel(ctx context.Context, id int64) error
}

type Service struct {
	store   Store
	devices DeviceCountByModel
	log     logrus.FieldLogger
}

func NewService(store Store, devices DeviceCountByModel, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{store: store, devices: devices, log: log}
}

func (s *Service) ListTypes(ctx context.Context) ([]models.DeviceType, error) {
	return s.store.ListTypes(ctx)
}

// ListModels returns all models, or only those of typeID when it is non-zero.
func (s *Service) ListModels(ctx context.Context, typeID int64) ([]models.DeviceModel, error) {
	return s.store.ListModels(ctx, typeID)
}

func (s *Service) ListOwners(ctx context.Context) ([]models.Owner, error) {
	return s.store.ListOwners(ctx)
}

// DeleteModel removes a device model that no device references.
func (s *Service) DeleteModel(ctx context.Context, id int64) error {
	if _, err := s.store.GetModel(ctx, id); err != nil {
		if errors.Is(err, apperr.ErrNoRows) {
			return apperr.NotFound(apperr.CodeDeviceModelNotFound, fmt.Sprintf("device model %d not found", id))
		}
		return err
	}

	n, err := s.devices.CountByModel(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return apperr.BadRequest(apperr.CodeDeleteModelWithDevices, fmt.Sprintf("device model %d is used by %d devices", id, n))
	}

	if err := s.store.DeleteModel(ctx, id); err != nil {
		if errors.Is(err, apperr.ErrNoRows) {
			return apperr.NotFound(apperr.CodeDeviceModelNotFound, fmt.Sprintf("device model %d not found", id))
		}
		return err
	}
	s.log.WithField("model_id", id).Info("device model deleted")
	return nil
}
