package memstore

import (
	"cmp"
	"context"
	"slices"
	"time"

	"devicehub-api/internal/apperr"
	"devicehub-api/internal/models"
)

type assignmentRepo struct{ r *repos }

func (a assignmentRepo) Get(_ context.Context, id int64) (*models.DeviceAssignment, error) {
	var (
		rec models.DeviceAssignment
		ok  bool
	)
	a.r.do(func(st *state) { rec, ok = st.assignments[id] })
	if !ok {
		return nil, apperr.ErrNoRows
	}
	return &rec, nil
}

func (a assignmentRepo) FindOpen(_ context.Context, deviceID int64) (*models.DeviceAssignment, error) {
	var (
		rec models.DeviceAssignment
		ok  bool
	)
	a.r.do(func(st *state) { rec, ok = st.openFor(deviceID) })
	if !ok {
		return nil, apperr.ErrNoRows
	}
	return &rec, nil
}

// Open rejects a second open record for the same device, like the partial
// unique index in Postgres.
func (a assignmentRepo) Open(_ context.Context, rec *models.DeviceAssignment) error {
	var err error
	a.r.do(func(st *state) {
		if _, open := st.openFor(rec.DeviceID); open {
			err = apperr.Conflict(apperr.CodeAssignmentAlreadyOpen, "device already has an open assignment")
			return
		}
		rec.ID = st.nextID()
		st.assignments[rec.ID] = *rec
	})
	return err
}

func (a assignmentRepo) Close(_ context.Context, id int64, returnedAt time.Time) error {
	var err error
	a.r.do(func(st *state) {
		rec, ok := st.assignments[id]
		if !ok || !rec.IsOpen() {
			err = apperr.ErrNoRows
			return
		}
		rec.ReturnedAt = &returnedAt
		st.assignments[id] = rec
	})
	return err
}

func (a assignmentRepo) CountByDevice(_ context.Context, deviceID int64) (int, error) {
	n := 0
	a.r.do(func(st *state) {
		for _, rec := range st.assignments {
			if rec.DeviceID == deviceID {
				n++
			}
		}
	})
	return n, nil
}

func (a assignmentRepo) List(_ context.Context, f models.AssignmentFilter, p models.PageRequest, now time.Time) ([]models.DeviceAssignmentView, int, error) {
	var matched []models.DeviceAssignmentView
	a.r.do(func(st *state) {
		for _, rec := range st.assignments {
			if len(f.DeviceIDs) > 0 && !slices.Contains(f.DeviceIDs, rec.DeviceID) {
				continue
			}
			if !rec.Overlaps(f.From, f.To, now) {
				continue
			}
			v := models.DeviceAssignmentView{DeviceAssignment: rec}
			if u, ok := st.users[rec.UserID]; ok {
				v.UserName = u.DisplayName()
			}
			if dev, ok := st.devices[rec.DeviceID]; ok {
				v.DeviceDetail = dev.Detail
			}
			matched = append(matched, v)
		}
	})
	slices.SortFunc(matched, assignmentOrder(f.Sort))
	return window(matched, p), len(matched), nil
}

func (st *state) openFor(deviceID int64) (models.DeviceAssignment, bool) {
	for _, rec := range st.assignments {
		if rec.DeviceID == deviceID && rec.IsOpen() {
			return rec, true
		}
	}
	return models.DeviceAssignment{}, false
}

func assignmentOrder(sortParam string) func(a, b models.DeviceAssignmentView) int {
	keys := models.ParseSort(sortParam, models.AssignmentSortFields)
	if len(keys) == 0 {
		keys = []models.SortKey{{Field: "assigned_at", Desc: true}, {Field: "id", Desc: true}}
	}
	return func(a, b models.DeviceAssignmentView) int {
		for _, k := range keys {
			var c int
			switch k.Field {
			case "assigned_at":
				c = a.AssignedAt.Compare(b.AssignedAt)
			case "returned_at":
				c = compareReturned(a.ReturnedAt, b.ReturnedAt)
			case "device_id":
				c = cmp.Compare(a.DeviceID, b.DeviceID)
			case "user_id":
				c = cmp.Compare(a.UserID, b.UserID)
			default:
				c = cmp.Compare(a.ID, b.ID)
			}
			if k.Desc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return cmp.Compare(a.ID, b.ID)
	}
}

// compareReturned orders open records after closed ones, as NULLS LAST does.
func compareReturned(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	return a.Compare(*b)
}
