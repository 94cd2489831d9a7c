package store

import (
	"context"
	"time"

	"github.com/lib/pq"

	"devicehub-api/internal/dbx"
	"devicehub-api/internal/models"
)

type assignmentRepo struct {
	db dbx.DBTX
}

const assignmentColumns = `id, device_id, user_id, assigned_at, returned_at, created_at`

func scanAssignment(row rowScanner, extra ...any) (*models.DeviceAssignment, error) {
	var a models.DeviceAssignment
	dest := append([]any{&a.ID, &a.DeviceID, &a.UserID, &a.AssignedAt, &a.ReturnedAt, &a.CreatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *assignmentRepo) Get(ctx context.Context, id int64) (*models.DeviceAssignment, error) {
	a, err := scanAssignment(r.db.QueryRowContext(ctx,
		`SELECT `+assignmentColumns+` FROM device_assignment_history WHERE id = $1`, id))
	return a, translate(err, "get assignment")
}

func (r *assignmentRepo) FindOpen(ctx context.Context, deviceID int64) (*models.DeviceAssignment, error) {
	a, err := scanAssignment(r.db.QueryRowContext(ctx,
		`SELECT `+assignmentColumns+` FROM device_assignment_history WHERE device_id = $1 AND returned_at IS NULL`, deviceID))
	return a, translate(err, "find open assignment")
}

func (r *assignmentRepo) Open(ctx context.Context, a *models.DeviceAssignment) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO device_assignment_history (device_id, user_id, assigned_at, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		a.DeviceID, a.UserID, a.AssignedAt, a.CreatedAt,
	).Scan(&a.ID)
	return translate(err, "open assignment")
}

// Close sets returned_at on an open record. Closing a closed record is an
// apperr.ErrNoRows so a lost race never rewrites history.
func (r *assignmentRepo) Close(ctx context.Context, id int64, returnedAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE device_assignment_history SET returned_at = $1 WHERE id = $2 AND returned_at IS NULL`, returnedAt, id)
	if err != nil {
		return translate(err, "close assignment")
	}
	return expectOneRow(res, "close assignment")
}

func (r *assignmentRepo) CountByDevice(ctx context.Context, deviceID int64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM device_assignment_history WHERE device_id = $1`, deviceID).Scan(&n)
	return n, translate(err, "count assignments")
}

var assignmentSortColumns = map[string]string{
	"id":          "h.id",
	"assigned_at": "h.assigned_at",
	"returned_at": "h.returned_at",
	"device_id":   "h.device_id",
	"user_id":     "h.user_id",
}

// assignmentListQuery selects records whose [assigned_at, returned_at or now]
// interval overlaps [From, To].
func assignmentListQuery(f models.AssignmentFilter, p models.PageRequest, now time.Time) (string, []any) {
	w := &where{}
	if len(f.DeviceIDs) > 0 {
		w.add("h.device_id = ANY(" + w.arg(pq.Array(f.DeviceIDs)) + ")")
	}
	if f.From != nil {
		w.add("COALESCE(h.returned_at, " + w.arg(now) + ") >= " + w.arg(*f.From))
	}
	if f.To != nil {
		w.add("h.assigned_at <= " + w.arg(*f.To))
	}

	order := " ORDER BY h.assigned_at DESC, h.id DESC"
	if keys := models.ParseSort(f.Sort, models.AssignmentSortFields); len(keys) > 0 {
		order = buildOrderBy(keys, assignmentSortColumns, "h.id ASC") + ", h.id ASC"
	}

	query := `
		SELECT h.id, h.device_id, h.user_id, h.assigned_at, h.returned_at, h.created_at,
		       COALESCE(NULLIF(TRIM(CONCAT_WS(' ', u.first_name, u.last_name)), ''), u.email),
		       d.detail,
		       COUNT(*) OVER() AS total_count
		FROM device_assignment_history h
		JOIN users u ON u.id = h.user_id
		JOIN devices d ON d.id = h.device_id` + w.String() + order + limitOffset(p)
	return query, w.args
}

func (r *assignmentRepo) List(ctx context.Context, f models.AssignmentFilter, p models.PageRequest, now time.Time) ([]models.DeviceAssignmentView, int, error) {
	query, args := assignmentListQuery(f, p, now)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, translate(err, "list assignments")
	}
	defer rows.Close()

	out := []models.DeviceAssignmentView{}
	var total int
	for rows.Next() {
		var v models.DeviceAssignmentView
		a, err := scanAssignment(rows, &v.UserName, &v.DeviceDetail, &total)
		if err != nil {
			return nil, 0, translate(err, "scan assignment")
		}
		v.DeviceAssignment = *a
		out = append(out, v)
	}
	return out, total, translate(rows.Err(), "list assignments")
}
