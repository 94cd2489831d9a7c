// Package memstore is an in-process implementation of devices.Store. Writers
// are serialized and a failed transaction restores the state it started from.
// It is used by STORE_DRIVER=memory and by tests.
package memstore

import (
	"context"
	"maps"
	"sync"
	"time"

	"devicehub-api/internal/apperr"
	"devicehub-api/internal/devices"
	"devicehub-api/internal/models"
)

type state struct {
	lastID      int64
	devices     map[int64]models.Device
	assignments map[int64]models.DeviceAssignment
	types       map[int64]models.DeviceType
	models      map[int64]models.DeviceModel
	owners      map[int64]models.Owner
	users       map[int64]models.User
	repairs     map[int64]models.RepairRecord
}

func newState() *state {
	return &state{
		devices:     map[int64]models.Device{},
		assignments: map[int64]models.DeviceAssignment{},
		types:       map[int64]models.DeviceType{},
		models:      map[int64]models.DeviceModel{},
		owners:      map[int64]models.Owner{},
		users:       map[int64]models.User{},
		repairs:     map[int64]models.RepairRecord{},
	}
}

// clone copies the maps. Pointer fields inside records are never mutated in
// place, so a shallow copy of each record is enough.
func (st *state) clone() *state {
	return &state{
		lastID:      st.lastID,
		devices:     maps.Clone(st.devices),
		assignments: maps.Clone(st.assignments),
		types:       maps.Clone(st.types),
		models:      maps.Clone(st.models),
		owners:      maps.Clone(st.owners),
		users:       maps.Clone(st.users),
		repairs:     maps.Clone(st.repairs),
	}
}

func (st *state) nextID() int64 {
	st.lastID++
	return st.lastID
}

// Store keeps everything in memory.
type Store struct {
	mu sync.Mutex
	st *state
}

var _ devices.Store = (*Store)(nil)

func New() *Store {
	return &Store{st: newState()}
}

// WithTx runs fn with exclusive access. If fn fails or panics the store is
// restored to its state before the call.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, r devices.Repositories) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	defer func() {
		if p := recover(); p != nil {
			s.st = snapshot
			panic(p)
		}
		if err != nil {
			s.st = snapshot
		}
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx, &repos{store: s, inTx: true})
}

// Reader returns repositories that lock per call.
func (s *Store) Reader() devices.Repositories {
	return &repos{store: s}
}

// AddType inserts a device type and returns it with its id set.
func (s *Store) AddType(name string) models.DeviceType {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := models.DeviceType{ID: s.st.nextID(), Name: name, CreatedAt: time.Now().UTC()}
	s.st.types[t.ID] = t
	return t
}

// AddModel inserts a device model of the given type.
func (s *Store) AddModel(typeID int64, name string) models.DeviceModel {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := models.DeviceModel{ID: s.st.nextID(), TypeID: typeID, Name: name, CreatedAt: time.Now().UTC()}
	s.st.models[m.ID] = m
	return m
}

func (s *Store) AddOwner(name string) models.Owner {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := models.Owner{ID: s.st.nextID(), Name: name, CreatedAt: time.Now().UTC()}
	s.st.owners[o.ID] = o
	return o
}

// AddUser inserts u with a fresh id unless u.ID is already set.
func (s *Store) AddUser(u models.User) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == 0 {
		u.ID = s.st.nextID()
	} else if u.ID > s.st.lastID {
		s.st.lastID = u.ID
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
		u.UpdatedAt = u.CreatedAt
	}
	s.st.users[u.ID] = u
	return u
}

// AddRepair records a repair for a device, as the repair subsystem would.
func (s *Store) AddRepair(deviceID int64, note string) models.RepairRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := models.RepairRecord{ID: s.st.nextID(), DeviceID: deviceID, CreatedAt: time.Now().UTC()}
	if note != "" {
		rec.Note = &note
	}
	s.st.repairs[rec.ID] = rec
	return rec
}

// FindUserByEmail supports login in memory mode.
func (s *Store) FindUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.st.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, apperr.ErrNoRows
}

// TouchLastLogin records a successful login.
func (s *Store) TouchLastLogin(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.st.users[userID]
	if !ok {
		return apperr.ErrNoRows
	}
	now := time.Now().UTC()
	u.LastLoginAt = &now
	s.st.users[userID] = u
	return nil
}

// SetPassword replaces the password hash of the user with email.
func (s *Store) SetPassword(_ context.Context, email, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, u := range s.st.users {
		if u.Email == email {
			u.PasswordHash = hash
			u.UpdatedAt = time.Now().UTC()
			s.st.users[id] = u
			return nil
		}
	}
	return apperr.ErrNoRows
}

// OpenAssignments returns every open ledger record of a device.
func (s *Store) OpenAssignments(deviceID int64) []models.DeviceAssignment {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.DeviceAssignment
	for _, a := range s.st.assignments {
		if a.DeviceID == deviceID && a.IsOpen() {
			out = append(out, a)
		}
	}
	return out
}

type repos struct {
	store *Store
	inTx  bool
}

// do runs fn against the current state, taking the lock unless a transaction holds it.
func (r *repos) do(fn func(st *state)) {
	if !r.inTx {
		r.store.mu.Lock()
		defer r.store.mu.Unlock()
	}
	fn(r.store.st)
}

func (r *repos) Devices() devices.DeviceRepository { return deviceRepo{r} }
func (r *repos) Assignments() devices.AssignmentRepository { return assignmentRepo{r} }
func (r *repos) Models() devices.ModelValidator { return catalogRepo{r} }
func (r *repos) Users() devices.UserDirectory { return catalogRepo{r} }
func (r *repos) Owners() devices.OwnerDirectory { return catalogRepo{r} }
func (r *repos) Repairs() devices.RepairHistoryStore { return catalogRepo{r} }
