package internal

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"devicehub-api/internal/apperr"
	"devicehub-api/internal/models"
)

// parsePage reads limit and offset. Out-of-range values are clamped later by
// PageRequest.Normalized; values that are not numbers are rejected.
func parsePage(r *http.Request) (models.PageRequest, error) {
	values := r.URL.Query()
	var p models.PageRequest
	if s := strings.TrimSpace(values.Get("limit")); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			return p, apperr.InvalidField("limit", "numeric", "limit must be an integer")
		}
		p.Limit = v
	}
	if s := strings.TrimSpace(values.Get("offset")); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 0 {
			return p, apperr.InvalidField("offset", "min", "offset must be a non-negative integer")
		}
		p.Offset = v
	}
	return p, nil
}

// parseIDList reads a parameter that may be repeated or comma separated,
// e.g. ?type_id=1,2&type_id=3.
func parseIDList(r *http.Request, name string, allowZero bool) ([]int64, error) {
	var ids []int64
	for _, raw := range r.URL.Query()[name] {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil || id < 0 || (id == 0 && !allowZero) {
				return nil, apperr.InvalidField(name, "numeric", fmt.Sprintf("%s contains invalid id %q", name, part))
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func parseStatuses(r *http.Request) []models.DeviceStatus {
	var out []models.DeviceStatus
	for _, raw := range r.URL.Query()["status"] {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, models.DeviceStatus(strings.ToUpper(part)))
			}
		}
	}
	return out
}

// parseTimeParam accepts RFC 3339 timestamps or plain dates. A plain date used
// as an upper bound covers the whole day.
func parseTimeParam(r *http.Request, name string, endOfDay bool) (*time.Time, error) {
	s := strings.TrimSpace(r.URL.Query().Get(name))
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		t = t.UTC()
		return &t, nil
	}
	d, err := models.ParseDate(s)
	if err != nil {
		return nil, apperr.InvalidField(name, "datetime", fmt.Sprintf("%s must be a date (YYYY-MM-DD) or an RFC 3339 timestamp", name))
	}
	t := d.Time.UTC()
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func parsePathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(urlParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.InvalidField(name, "numeric", fmt.Sprintf("invalid %s", name))
	}
	return id, nil
}

func parseDeviceFilter(r *http.Request) (models.DeviceFilter, error) {
	values := r.URL.Query()
	f := models.DeviceFilter{
		Statuses:      parseStatuses(r),
		Keyword:       strings.TrimSpace(values.Get("keyword")),
		AssigneeOrder: models.SortDirection(strings.ToLower(strings.TrimSpace(values.Get("assignee_order")))),
		Sort:          strings.TrimSpace(values.Get("sort")),
	}
	if f.Keyword == "" {
		f.Keyword = strings.TrimSpace(values.Get("q"))
	}
	var err error
	if f.TypeIDs, err = parseIDList(r, "type_id", false); err != nil {
		return f, err
	}
	if f.ModelIDs, err = parseIDList(r, "model_id", false); err != nil {
		return f, err
	}
	if f.OwnerIDs, err = parseIDList(r, "owner_id", false); err != nil {
		return f, err
	}
	if f.UserIDs, err = parseIDList(r, "user_id", true); err != nil {
		return f, err
	}
	return f, nil
}

func parseAssignmentFilter(r *http.Request) (models.AssignmentFilter, error) {
	f := models.AssignmentFilter{Sort: strings.TrimSpace(r.URL.Query().Get("sort"))}
	var err error
	if f.DeviceIDs, err = parseIDList(r, "device_id", false); err != nil {
		return f, err
	}
	if f.From, err = parseTimeParam(r, "from", false); err != nil {
		return f, err
	}
	if f.To, err = parseTimeParam(r, "to", true); err != nil {
		return f, err
	}
	return f, nil
}
