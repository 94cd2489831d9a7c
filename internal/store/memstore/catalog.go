package memstore

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"devicehub-api/internal/apperr"
	"devicehub-api/internal/models"
)

type catalogRepo struct{ r *repos }

func (c catalogRepo) Validate(_ context.Context, modelID, typeID int64) error {
	var err error
	c.r.do(func(st *state) {
		m, ok := st.models[modelID]
		if !ok {
			err = apperr.NotFound(apperr.CodeDeviceModelNotFound, fmt.Sprintf("device model %d not found", modelID))
			return
		}
		if _, ok := st.types[typeID]; !ok {
			err = apperr.NotFound(apperr.CodeDeviceTypeNotFound, fmt.Sprintf("device type %d not found", typeID))
			return
		}
		if m.TypeID != typeID {
			err = apperr.Conflict(apperr.CodeModelNotOfType, fmt.Sprintf("device model %d does not belong to type %d", modelID, typeID))
		}
	})
	return err
}

func (c catalogRepo) LookupUser(_ context.Context, id int64) (*models.User, error) {
	var (
		u  models.User
		ok bool
	)
	c.r.do(func(st *state) { u, ok = st.users[id] })
	if !ok {
		return nil, apperr.ErrNoRows
	}
	return &u, nil
}

func (c catalogRepo) LookupOwner(_ context.Context, id int64) (*models.Owner, error) {
	var (
		o  models.Owner
		ok bool
	)
	c.r.do(func(st *state) { o, ok = st.owners[id] })
	if !ok {
		return nil, apperr.ErrNoRows
	}
	return &o, nil
}

func (c catalogRepo) CountByDevice(_ context.Context, deviceID int64) (int, error) {
	n := 0
	c.r.do(func(st *state) {
		for _, rec := range st.repairs {
			if rec.DeviceID == deviceID {
				n++
			}
		}
	})
	return n, nil
}

// ListTypes returns all device types ordered by name.
func (s *Store) ListTypes(_ context.Context) ([]models.DeviceType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := slices.Collect(maps.Values(s.st.types))
	slices.SortFunc(out, func(a, b models.DeviceType) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func (s *Store) ListModels(_ context.Context, typeID int64) ([]models.DeviceModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.DeviceModel{}
	for _, m := range s.st.models {
		if typeID == 0 || m.TypeID == typeID {
			out = append(out, m)
		}
	}
	slices.SortFunc(out, func(a, b models.DeviceModel) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func (s *Store) ListOwners(_ context.Context) ([]models.Owner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := slices.Collect(maps.Values(s.st.owners))
	slices.SortFunc(out, func(a, b models.Owner) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func (s *Store) GetModel(_ context.Context, id int64) (*models.DeviceModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.st.models[id]
	if !ok {
		return nil, apperr.ErrNoRows
	}
	return &m, nil
}

// DeleteModel refuses to orphan devices, mirroring the foreign key in Postgres.
func (s *Store) DeleteModel(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.models[id]; !ok {
		return apperr.ErrNoRows
	}
	for _, dev := range s.st.devices {
		if dev.ModelID == id {
			return apperr.BadRequest(apperr.CodeDeleteModelWithDevices, "device model is still referenced")
		}
	}
	delete(s.st.models, id)
	return nil
}

// CountByModel lets the store serve catalog.DeviceCountByModel directly.
func (s *Store) CountByModel(ctx context.Context, modelID int64) (int, error) {
	return s.Reader().Devices().CountByModel(ctx, modelID)
}
