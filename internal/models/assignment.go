package models

import "time"

// DeviceAssignment is one interval in a device's assignment ledger.
// A nil ReturnedAt means the assignment is still in effect.
type DeviceAssignment struct {
	ID         int64      `json:"id"`
	DeviceID   int64      `json:"device_id"`
	UserID     int64      `json:"user_id"`
	AssignedAt time.Time  `json:"assigned_at"`
	ReturnedAt *time.Time `json:"returned_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// IsOpen reports whether the assignment has not been returned yet.
func (a *DeviceAssignment) IsOpen() bool {
	return a.ReturnedAt == nil
}

// Overlaps reports whether [AssignedAt, ReturnedAt or now] intersects [from, to].
// A nil bound is unbounded.
func (a *DeviceAssignment) Overlaps(from, to *time.Time, now time.Time) bool {
	end := now
	if a.ReturnedAt != nil {
		end = *a.ReturnedAt
	}
	if from != nil && end.Before(*from) {
		return false
	}
	if to != nil && a.AssignedAt.After(*to) {
		return false
	}
	return true
}

// DeviceAssignmentView is an assignment joined with its holder's name.
type DeviceAssignmentView struct {
	DeviceAssignment
	UserName     string `json:"user_name"`
	DeviceDetail string `json:"device_detail"`
}
