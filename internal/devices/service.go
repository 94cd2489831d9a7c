package devices

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"devicehub-api/internal/apperr"
	"devicehub-api/internal/models"
)

// Service is the only write path for devices and their assignment ledger.
type Service struct {
	store    Store
	validate *validator.Validate
	now      func() time.Time
	log      logrus.FieldLogger
	obs      Observer
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source used for ledger timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger for ledger transitions and rejected mutations.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Service) { s.log = l }
}

// WithObserver reports mutations and ledger transitions to o.
func WithObserver(o Observer) Option {
	return func(s *Service) { s.obs = o }
}

// NewService creates a device service backed by store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:    store,
		validate: newValidator(),
		now:      time.Now,
		log:      logrus.StandardLogger(),
		obs:      nopObserver{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateDevice registers a device and, when it has an assignee, opens its
// first assignment.
func (s *Service) CreateDevice(ctx context.Context, in models.DeviceInput) (*models.Device, error) {
	if err := s.checkInput(&in); err != nil {
		s.obs.Mutation("create", resultOf(err))
		return nil, err
	}

	var (
		created *models.Device
		change  ledgerChange
	)
	err := s.store.WithTx(ctx, func(ctx context.Context, r Repositories) error {
		if err := checkReferences(ctx, r, &in, nil); err != nil {
			return err
		}

		now := s.now().UTC()
		d := &models.Device{CreatedAt: now, UpdatedAt: now}
		in.Apply(d)
		if err := r.Devices().Insert(ctx, d); err != nil {
			return err
		}

		var err error
		if d.UserID != nil {
			change, err = reconcileLedger(ctx, r.Assignments(), d.ID, d.UserID, now)
			if err != nil {
				return err
			}
		}
		created = d
		return nil
	})
	s.finish("create", err, created, nil, change)
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateDevice replaces the editable fields of device id with in and moves the
// ledger when the assignee changes.
func (s *Service) UpdateDevice(ctx context.Context, id int64, in models.DeviceInput) (*models.Device, error) {
	if err := s.checkInput(&in); err != nil {
		s.obs.Mutation("update", resultOf(err))
		return nil, err
	}

	var (
		updated *models.Device
		from    *int64
		change  ledgerChange
	)
	err := s.store.WithTx(ctx, func(ctx context.Context, r Repositories) error {
		d, err := r.Devices().GetForUpdate(ctx, id)
		if err != nil {
			return notFoundAs(err, apperr.CodeDeviceNotFound, fmt.Sprintf("device %d not found", id))
		}
		if err := checkReferences(ctx, r, &in, d); err != nil {
			return err
		}

		// Read the clock only once the row is locked so ledger times follow lock order.
		now := s.now().UTC()
		from = d.UserID
		in.Apply(d)
		d.UpdatedAt = now
		if err := r.Devices().Update(ctx, d); err != nil {
			return err
		}

		if !sameAssignee(from, d.UserID) {
			change, err = reconcileLedger(ctx, r.Assignments(), d.ID, d.UserID, now)
			if err != nil {
				return err
			}
		}
		updated = d
		return nil
	})
	s.finish("update", err, updated, from, change)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteDevice removes a device that has never been assigned or repaired.
func (s *Service) DeleteDevice(ctx context.Context, id int64) error {
	err := s.store.WithTx(ctx, func(ctx context.Context, r Repositories) error {
		d, err := r.Devices().GetForUpdate(ctx, id)
		if err != nil {
			return notFoundAs(err, apperr.CodeDeviceNotFound, fmt.Sprintf("device %d not found", id))
		}
		if err := checkDeletable(ctx, r, d); err != nil {
			return err
		}
		return r.Devices().Delete(ctx, id)
	})
	s.obs.Mutation("delete", resultOf(err))
	if err != nil {
		s.log.WithError(err).WithField("device_id", id).Debug("device delete rejected")
		return err
	}
	s.log.WithField("device_id", id).Info("device deleted")
	return nil
}

func (s *Service) finish(op string, err error, d *models.Device, from *int64, change ledgerChange) {
	s.obs.Mutation(op, resultOf(err))
	if err != nil {
		s.log.WithError(err).WithField("op", op).Debug("device mutation rejected")
		return
	}
	if change.closed != nil {
		s.obs.AssignmentClosed()
	}
	if change.opened != nil {
		s.obs.AssignmentOpened()
	}

	entry := s.log.WithFields(logrus.Fields{"op": op, "device_id": d.ID})
	if change.closed != nil || change.opened != nil {
		entry = entry.WithFields(logrus.Fields{"from_user": userField(from), "to_user": userField(d.UserID)})
	}
	entry.Info("device saved")
}

func userField(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

func resultOf(err error) string {
	if err == nil {
		return "ok"
	}
	if e := apperr.From(err); e.Kind != apperr.KindInternal {
		return "rejected"
	}
	return "error"
}
