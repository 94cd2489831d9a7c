package memstore

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"devicehub-api/internal/apperr"
	"devicehub-api/internal/models"
)

type deviceRepo struct{ r *repos }

func (d deviceRepo) Get(_ context.Context, id int64) (*models.Device, error) {
	var (
		dev models.Device
		ok  bool
	)
	d.r.do(func(st *state) { dev, ok = st.devices[id] })
	if !ok {
		return nil, apperr.ErrNoRows
	}
	return &dev, nil
}

// GetForUpdate needs no extra locking: transactions already run one at a time.
func (d deviceRepo) GetForUpdate(ctx context.Context, id int64) (*models.Device, error) {
	return d.Get(ctx, id)
}

func (d deviceRepo) GetView(_ context.Context, id int64) (*models.DeviceView, error) {
	var (
		v  models.DeviceView
		ok bool
	)
	d.r.do(func(st *state) {
		var dev models.Device
		if dev, ok = st.devices[id]; ok {
			v = st.view(dev)
		}
	})
	if !ok {
		return nil, apperr.ErrNoRows
	}
	return &v, nil
}

func (d deviceRepo) ExistsByCode(_ context.Context, code string, excludeID int64) (bool, error) {
	var found bool
	d.r.do(func(st *state) { found = st.codeTaken(code, excludeID) })
	return found, nil
}

func (d deviceRepo) Insert(_ context.Context, dev *models.Device) error {
	var err error
	d.r.do(func(st *state) {
		if dev.Code != nil && st.codeTaken(*dev.Code, 0) {
			err = apperr.BadRequest(apperr.CodeDeviceCodeExists, "device code is already in use")
			return
		}
		dev.ID = st.nextID()
		st.devices[dev.ID] = *dev
	})
	return err
}

func (d deviceRepo) Update(_ context.Context, dev *models.Device) error {
	var err error
	d.r.do(func(st *state) {
		if _, ok := st.devices[dev.ID]; !ok {
			err = apperr.ErrNoRows
			return
		}
		if dev.Code != nil && st.codeTaken(*dev.Code, dev.ID) {
			err = apperr.BadRequest(apperr.CodeDeviceCodeExists, "device code is already in use")
			return
		}
		st.devices[dev.ID] = *dev
	})
	return err
}

func (d deviceRepo) Delete(_ context.Context, id int64) error {
	var err error
	d.r.do(func(st *state) {
		if _, ok := st.devices[id]; !ok {
			err = apperr.ErrNoRows
			return
		}
		delete(st.devices, id)
	})
	return err
}

func (d deviceRepo) CountByModel(_ context.Context, modelID int64) (int, error) {
	n := 0
	d.r.do(func(st *state) {
		for _, dev := range st.devices {
			if dev.ModelID == modelID {
				n++
			}
		}
	})
	return n, nil
}

func (d deviceRepo) List(_ context.Context, f models.DeviceFilter, p models.PageRequest) ([]models.DeviceView, int, error) {
	var matched []models.DeviceView
	d.r.do(func(st *state) {
		for _, dev := range st.devices {
			if matchDevice(dev, f) {
				matched = append(matched, st.view(dev))
			}
		}
	})
	slices.SortFunc(matched, deviceOrder(f))
	return window(matched, p), len(matched), nil
}

func (st *state) codeTaken(code string, excludeID int64) bool {
	for _, dev := range st.devices {
		if dev.ID != excludeID && dev.Code != nil && *dev.Code == code {
			return true
		}
	}
	return false
}

func (st *state) view(dev models.Device) models.DeviceView {
	v := models.DeviceView{Device: dev}
	if m, ok := st.models[dev.ModelID]; ok {
		v.ModelName = m.Name
	}
	if t, ok := st.types[dev.TypeID]; ok {
		v.TypeName = t.Name
	}
	if dev.OwnerID != nil {
		if o, ok := st.owners[*dev.OwnerID]; ok {
			name := o.Name
			v.OwnerName = &name
		}
	}
	if dev.UserID != nil {
		if u, ok := st.users[*dev.UserID]; ok {
			name := u.DisplayName()
			v.UserName = &name
		}
	}
	return v
}

func matchDevice(dev models.Device, f models.DeviceFilter) bool {
	if len(f.TypeIDs) > 0 && !slices.Contains(f.TypeIDs, dev.TypeID) {
		return false
	}
	if len(f.ModelIDs) > 0 && !slices.Contains(f.ModelIDs, dev.ModelID) {
		return false
	}
	if len(f.OwnerIDs) > 0 && (dev.OwnerID == nil || !slices.Contains(f.OwnerIDs, *dev.OwnerID)) {
		return false
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, dev.Status) {
		return false
	}
	if len(f.UserIDs) > 0 {
		ids, unassigned := f.SplitUserIDs()
		held := dev.UserID != nil && slices.Contains(ids, *dev.UserID)
		if !held && !(unassigned && dev.UserID == nil) {
			return false
		}
	}
	if kw := strings.ToLower(strings.TrimSpace(f.Keyword)); kw != "" {
		code := ""
		if dev.Code != nil {
			code = *dev.Code
		}
		if !strings.Contains(strings.ToLower(dev.Detail), kw) &&
			!strings.Contains(strings.ToLower(code), kw) &&
			!strings.Contains(strings.ToLower(dev.SerialNumber), kw) {
			return false
		}
	}
	return true
}

func deviceOrder(f models.DeviceFilter) func(a, b models.DeviceView) int {
	keys := models.ParseSort(f.Sort, models.DeviceSortFields)
	return func(a, b models.DeviceView) int {
		if len(keys) == 0 {
			if c := cmp.Compare(assignedRank(a), assignedRank(b)); c != 0 {
				if f.AssigneeOrder == models.SortAsc {
					return c
				}
				return -c
			}
			if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
				return c
			}
			return cmp.Compare(b.ID, a.ID)
		}
		for _, k := range keys {
			c := compareDeviceField(a.Device, b.Device, k.Field)
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

func assignedRank(v models.DeviceView) int {
	if v.UserID != nil {
		return 1
	}
	return 0
}

func compareDeviceField(a, b models.Device, field string) int {
	switch field {
	case "created_at":
		return a.CreatedAt.Compare(b.CreatedAt)
	case "updated_at":
		return a.UpdatedAt.Compare(b.UpdatedAt)
	case "purchased_at":
		return a.PurchasedAt.Compare(b.PurchasedAt.Time)
	case "serial_number":
		return strings.Compare(a.SerialNumber, b.SerialNumber)
	case "detail":
		return strings.Compare(a.Detail, b.Detail)
	case "code":
		return compareCode(a.Code, b.Code)
	case "status":
		return strings.Compare(string(a.Status), string(b.Status))
	default:
		return cmp.Compare(a.ID, b.ID)
	}
}

// compareCode orders devices without a code last, as NULLS LAST does.
func compareCode(a, b *string) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	return strings.Compare(*a, *b)
}

func window[T any](rows []T, p models.PageRequest) []T {
	if p.Offset >= len(rows) {
		return []T{}
	}
	end := min(p.Offset+p.Limit, len(rows))
	return rows[p.Offset:end]
}
