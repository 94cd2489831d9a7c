package devices

import (
	"context"
	"time"

	"devicehub-api/internal/models"
)

// DeviceRepository persists devices. Single-row lookups return apperr.ErrNoRows
// when nothing matches.
type DeviceRepository interface {
	Get(ctx context.Context, id int64) (*models.Device, error)
	// GetForUpdate loads the device and locks its row until the transaction ends.
	GetForUpdate(ctx context.Context, id int64) (*models.Device, error)
	GetView(ctx context.Context, id int64) (*models.DeviceView, error)
	// ExistsByCode reports whether a device other than excludeID uses code.
	ExistsByCode(ctx context.Context, code string, excludeID int64) (bool, error)
	Insert(ctx context.Context, d *models.Device) error
	Update(ctx context.Context, d *models.Device) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, f models.DeviceFilter, p models.PageRequest) ([]models.DeviceView, int, error)
	CountByModel(ctx context.Context, modelID int64) (int, error)
}

// AssignmentRepository persists the assignment ledger.
type AssignmentRepository interface {
	Get(ctx context.Context, id int64) (*models.DeviceAssignment, error)
	// FindOpen returns the open assignment of a device or apperr.ErrNoRows.
	FindOpen(ctx context.Context, deviceID int64) (*models.DeviceAssignment, error)
	Open(ctx context.Context, a *models.DeviceAssignment) error
	Close(ctx context.Context, id int64, returnedAt time.Time) error
	CountByDevice(ctx context.Context, deviceID int64) (int, error)
	List(ctx context.Context, f models.AssignmentFilter, p models.PageRequest, now time.Time) ([]models.DeviceAssignmentView, int, error)
}

// ModelValidator confirms that a model belongs to a type. It returns a NotFound
// apperr for a missing model or type and a Conflict when they do not match.
type ModelValidator interface {
	Validate(ctx context.Context, modelID, typeID int64) error
}

// UserDirectory looks up users. Missing users yield apperr.ErrNoRows.
type UserDirectory interface {
	LookupUser(ctx context.Context, id int64) (*models.User, error)
}

// OwnerDirectory looks up owners. Missing owners yield apperr.ErrNoRows.
type OwnerDirectory interface {
	LookupOwner(ctx context.Context, id int64) (*models.Owner, error)
}

// RepairHistoryStore is the read side of the repair subsystem.
type RepairHistoryStore interface {
	CountByDevice(ctx context.Context, deviceID int64) (int, error)
}

// Repositories is the set of collaborators bound to one connection or transaction.
type Repositories interface {
	Devices() DeviceRepository
	Assignments() AssignmentRepository
	Models() ModelValidator
	Users() UserDirectory
	Owners() OwnerDirectory
	Repairs() RepairHistoryStore
}

// Store hands out repositories. WithTx commits when fn returns nil and rolls
// back otherwise; Reader is for queries that need no transaction.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, r Repositories) error) error
	Reader() Repositories
}

// Observer receives ledger and mutation events after they commit.
type Observer interface {
	AssignmentOpened()
	AssignmentClosed()
	Mutation(op, result string)
}

type nopObserver struct{}

func (nopObserver) AssignmentOpened() {}
func (nopObserver) AssignmentClosed() {}
func (nopObserver) Mutation(_, _ string) {}
