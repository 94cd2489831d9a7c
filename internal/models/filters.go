package models

import (
	"slices"
	"strings"
	"time"
)

// NoAssignee stands for "device without a current holder" in DeviceFilter.UserIDs.
const NoAssignee int64 = 0

// SortDirection is asc or desc.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// DeviceFilter narrows a device listing. Empty sets do not filter.
type DeviceFilter struct {
	TypeIDs  []int64
	ModelIDs []int64
	OwnerIDs []int64
	Statuses []DeviceStatus
	Keyword  string
	// UserIDs may contain NoAssignee, which is OR-ed with the concrete ids.
	UserIDs []int64
	// AssigneeOrder controls whether assigned devices come first (desc, the
	// default) or last (asc). Ignored when Sort is set.
	AssigneeOrder SortDirection
	Sort          string
}

// SplitUserIDs separates the NoAssignee sentinel from concrete user ids.
func (f DeviceFilter) SplitUserIDs() (ids []int64, includeUnassigned bool) {
	for _, id := range f.UserIDs {
		if id == NoAssignee {
			includeUnassigned = true
			continue
		}
		ids = append(ids, id)
	}
	return ids, includeUnassigned
}

// AssignmentFilter narrows an assignment history listing.
type AssignmentFilter struct {
	DeviceIDs []int64
	From      *time.Time
	To        *time.Time
	Sort      string
}

// Sortable fields accepted in the sort parameter of each listing.
var (
	DeviceSortFields     = []string{"id", "created_at", "updated_at", "purchased_at", "serial_number", "detail", "code", "status"}
	AssignmentSortFields = []string{"id", "assigned_at", "returned_at", "device_id", "user_id"}
)

// SortKey is one parsed component of a sort parameter.
type SortKey struct {
	Field string
	Desc  bool
}

// ParseSort parses a comma-separated sort parameter such as "-created_at,id".
// A leading '-' means descending. Fields not in allowed are dropped.
func ParseSort(sortParam string, allowed []string) []SortKey {
	var keys []SortKey
	for _, raw := range strings.Split(sortParam, ",") {
		s := strings.TrimSpace(raw)
		if s == "" {
			continue
		}
		desc := strings.HasPrefix(s, "-")
		s = strings.TrimPrefix(s, "-")
		if !slices.Contains(allowed, s) {
			continue
		}
		keys = append(keys, SortKey{Field: s, Desc: desc})
	}
	return keys
}
