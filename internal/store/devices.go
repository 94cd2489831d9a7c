package store

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"devicehub-api/internal/dbx"
	"devicehub-api/internal/models"
)

type deviceRepo struct {
	db dbx.DBTX
}

const deviceColumns = `id, model_id, type_id, serial_number, detail, code, note, purchased_at, status, owner_id, user_id, created_at, updated_at`

// deviceViewSelect joins every reference a device view shows. Model and type
// are required; owner and holder are optional.
const deviceViewSelect = `
		SELECT d.id, d.model_id, d.type_id, d.serial_number, d.detail, d.code, d.note, d.purchased_at, d.status,
		       d.owner_id, d.user_id, d.created_at, d.updated_at,
		       m.name, t.name, o.name,
		       CASE WHEN u.id IS NULL THEN NULL
		            ELSE COALESCE(NULLIF(TRIM(CONCAT_WS(' ', u.first_name, u.last_name)), ''), u.email) END`

const deviceViewFrom = `
		FROM devices d
		JOIN device_models m ON m.id = d.model_id
		JOIN device_types t ON t.id = d.type_id
		LEFT JOIN owners o ON o.id = d.owner_id
		LEFT JOIN users u ON u.id = d.user_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(row rowScanner, extra ...any) (*models.Device, error) {
	var d models.Device
	dest := []any{
		&d.ID, &d.ModelID, &d.TypeID, &d.SerialNumber, &d.Detail, &d.Code, &d.Note, &d.PurchasedAt,
		&d.Status, &d.OwnerID, &d.UserID, &d.CreatedAt, &d.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &d, nil
}

func scanDeviceView(row rowScanner, extra ...any) (*models.DeviceView, error) {
	var v models.DeviceView
	d, err := scanDevice(row, append([]any{&v.ModelName, &v.TypeName, &v.OwnerName, &v.UserName}, extra...)...)
	if err != nil {
		return nil, err
	}
	v.Device = *d
	return &v, nil
}

func (r *deviceRepo) Get(ctx context.Context, id int64) (*models.Device, error) {
	d, err := scanDevice(r.db.QueryRowContext(ctx, `SELECT `+deviceColumns+` FROM devices WHERE id = $1`, id))
	return d, translate(err, "get device")
}

func (r *deviceRepo) GetForUpdate(ctx context.Context, id int64) (*models.Device, error) {
	d, err := scanDevice(r.db.QueryRowContext(ctx, `SELECT `+deviceColumns+` FROM devices WHERE id = $1 FOR UPDATE`, id))
	return d, translate(err, "lock device")
}

func (r *deviceRepo) GetView(ctx context.Context, id int64) (*models.DeviceView, error) {
	v, err := scanDeviceView(r.db.QueryRowContext(ctx, deviceViewSelect+deviceViewFrom+` WHERE d.id = $1`, id))
	return v, translate(err, "get device view")
}

func (r *deviceRepo) ExistsByCode(ctx context.Context, code string, excludeID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM devices WHERE code = $1 AND id <> $2)`, code, excludeID).Scan(&exists)
	return exists, translate(err, "check device code")
}

func (r *deviceRepo) Insert(ctx context.Context, d *models.Device) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO devices (model_id, type_id, serial_number, detail, code, note, purchased_at, status, owner_id, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`,
		d.ModelID, d.TypeID, d.SerialNumber, d.Detail, d.Code, d.Note, d.PurchasedAt, d.Status,
		d.OwnerID, d.UserID, d.CreatedAt, d.UpdatedAt,
	).Scan(&d.ID)
	return translate(err, "insert device")
}

func (r *deviceRepo) Update(ctx context.Context, d *models.Device) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE devices
		SET model_id = $1, type_id = $2, serial_number = $3, detail = $4, code = $5, note = $6,
		    purchased_at = $7, status = $8, owner_id = $9, user_id = $10, updated_at = $11
		WHERE id = $12`,
		d.ModelID, d.TypeID, d.SerialNumber, d.Detail, d.Code, d.Note,
		d.PurchasedAt, d.Status, d.OwnerID, d.UserID, d.UpdatedAt, d.ID,
	)
	if err != nil {
		return translate(err, "update device")
	}
	return expectOneRow(res, "update device")
}

func (r *deviceRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM devices WHERE id = $1`, id)
	if err != nil {
		return translate(err, "delete device")
	}
	return expectOneRow(res, "delete device")
}

func (r *deviceRepo) CountByModel(ctx context.Context, modelID int64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM devices WHERE model_id = $1`, modelID).Scan(&n)
	return n, translate(err, "count devices by model")
}

var deviceSortColumns = map[string]string{
	"id":            "d.id",
	"created_at":    "d.created_at",
	"updated_at":    "d.updated_at",
	"purchased_at":  "d.purchased_at",
	"serial_number": "d.serial_number",
	"detail":        "d.detail",
	"code":          "d.code",
	"status":        "d.status",
}

func deviceWhere(f models.DeviceFilter) *where {
	w := &where{}
	if len(f.TypeIDs) > 0 {
		w.add("d.type_id = ANY(" + w.arg(pq.Array(f.TypeIDs)) + ")")
	}
	if len(f.ModelIDs) > 0 {
		w.add("d.model_id = ANY(" + w.arg(pq.Array(f.ModelIDs)) + ")")
	}
	if len(f.OwnerIDs) > 0 {
		w.add("d.owner_id = ANY(" + w.arg(pq.Array(f.OwnerIDs)) + ")")
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		w.add("d.status = ANY(" + w.arg(pq.Array(statuses)) + ")")
	}
	if f.Keyword != "" {
		kw := w.arg("%" + f.Keyword + "%")
		w.add("(d.detail ILIKE " + kw + " OR d.code ILIKE " + kw + " OR d.serial_number ILIKE " + kw + ")")
	}
	if len(f.UserIDs) > 0 {
		ids, unassigned := f.SplitUserIDs()
		switch {
		case len(ids) > 0 && unassigned:
			w.add("(d.user_id IS NULL OR d.user_id = ANY(" + w.arg(pq.Array(ids)) + "))")
		case len(ids) > 0:
			w.add("d.user_id = ANY(" + w.arg(pq.Array(ids)) + ")")
		default:
			w.add("d.user_id IS NULL")
		}
	}
	return w
}

// deviceListQuery builds the listing statement. Assigned devices come first
// unless the filter asks for ascending assignee order or an explicit sort.
func deviceListQuery(f models.DeviceFilter, p models.PageRequest) (string, []any) {
	w := deviceWhere(f)

	assigned := "(d.user_id IS NOT NULL) DESC"
	if f.AssigneeOrder == models.SortAsc {
		assigned = "(d.user_id IS NOT NULL) ASC"
	}
	order := " ORDER BY " + assigned + ", d.created_at DESC, d.id DESC"
	if keys := models.ParseSort(f.Sort, models.DeviceSortFields); len(keys) > 0 {
		order = buildOrderBy(keys, deviceSortColumns, "d.id ASC") + ", d.id ASC"
	}

	query := deviceViewSelect + `,
		       COUNT(*) OVER() AS total_count` + deviceViewFrom + w.String() + order + limitOffset(p)
	return query, w.args
}

func (r *deviceRepo) List(ctx context.Context, f models.DeviceFilter, p models.PageRequest) ([]models.DeviceView, int, error) {
	query, args := deviceListQuery(f, p)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, translate(err, "list devices")
	}
	defer rows.Close()

	out := []models.DeviceView{}
	var total int
	for rows.Next() {
		v, err := scanDeviceView(rows, &total)
		if err != nil {
			return nil, 0, translate(err, "scan device")
		}
		out = append(out, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, translate(err, "list devices")
	}
	if len(out) == 0 && p.Offset > 0 {
		// past the end, the window function has no row to report on
		total, err = r.count(ctx, f)
		if err != nil {
			return nil, 0, err
		}
	}
	return out, total, nil
}

func (r *deviceRepo) count(ctx context.Context, f models.DeviceFilter) (int, error) {
	w := deviceWhere(f)
	var total int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM devices d`+w.String(), w.args...).Scan(&total)
	return total, translate(err, "count devices")
}

func expectOneRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return translate(err, op)
	}
	if n == 0 {
		return translate(sql.ErrNoRows, op)
	}
	return nil
}
