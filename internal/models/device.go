package models

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// DeviceStatus is the physical condition of a device.
type DeviceStatus string

const (
	StatusHealthy     DeviceStatus = "HEALTHY"
	StatusBroken      DeviceStatus = "BROKEN"
	StatusUnderRepair DeviceStatus = "UNDER_REPAIR"
	StatusScrapped    DeviceStatus = "SCRAPPED"
)

// ValidStatuses lists every status a device may carry.
var ValidStatuses = []DeviceStatus{StatusHealthy, StatusBroken, StatusUnderRepair, StatusScrapped}

// Valid reports whether s is a known status.
func (s DeviceStatus) Valid() bool {
	for _, v := range ValidStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// ParseDeviceStatus parses a status case-insensitively.
func ParseDeviceStatus(s string) (DeviceStatus, error) {
	st := DeviceStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("unknown device status %q", s)
	}
	return st, nil
}

const dateLayout = "2006-01-02"

// Date is a calendar day without time of day, serialized as YYYY-MM-DD.
type Date struct {
	time.Time
}

// NewDate truncates t to its calendar day in UTC.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.Format(dateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	*d = parsed
	return nil
}

// Value implements the driver.Valuer interface for Date
func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.Time, nil
}

// Scan implements the sql.Scanner interface for Date
func (d *Date) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*d = Date{}
	case time.Time:
		*d = NewDate(v.Year(), v.Month(), v.Day())
	case string:
		parsed, err := ParseDate(v)
		if err != nil {
			return err
		}
		*d = parsed
	case []byte:
		parsed, err := ParseDate(string(v))
		if err != nil {
			return err
		}
		*d = parsed
	default:
		return fmt.Errorf("cannot scan %T into Date", value)
	}
	return nil
}

// Device is a tracked physical asset. UserID is the current assignee and is
// only written together with the assignment ledger.
type Device struct {
	ID           int64        `json:"id"`
	ModelID      int64        `json:"model_id"`
	TypeID       int64        `json:"type_id"`
	SerialNumber string       `json:"serial_number"`
	Detail       string       `json:"detail"`
	Code         *string      `json:"code,omitempty"`
	Note         *string      `json:"note,omitempty"`
	PurchasedAt  Date         `json:"purchased_at"`
	Status       DeviceStatus `json:"status"`
	OwnerID      *int64       `json:"owner_id,omitempty"`
	UserID       *int64       `json:"user_id,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// HasAssignee reports whether the device is currently held by a user.
func (d *Device) HasAssignee() bool {
	return d.UserID != nil
}

// DeviceView is a device joined with the display names of its references.
type DeviceView struct {
	Device
	ModelName string  `json:"model_name"`
	TypeName  string  `json:"type_name"`
	OwnerName *string `json:"owner_name,omitempty"`
	UserName  *string `json:"user_name,omitempty"`
}

// DeviceInput is the request body for creating or updating a device.
// Fields omitted on update are cleared, not preserved.
type DeviceInput struct {
	ModelID      int64        `json:"model_id" validate:"required,gt=0"`
	TypeID       int64        `json:"type_id" validate:"required,gt=0"`
	SerialNumber string       `json:"serial_number" validate:"required,max=255"`
	Detail       string       `json:"detail" validate:"required,max=1000"`
	Code         *string      `json:"code,omitempty" validate:"omitempty,max=100"`
	Note         *string      `json:"note,omitempty" validate:"omitempty,max=2000"`
	PurchasedAt  Date         `json:"purchased_at"`
	Status       DeviceStatus `json:"status" validate:"required"`
	OwnerID      *int64       `json:"owner_id,omitempty" validate:"omitempty,gt=0"`
	UserID       *int64       `json:"user_id,omitempty" validate:"omitempty,gt=0"`
}

// Normalize trims string fields and turns blank optional strings into nil.
func (in *DeviceInput) Normalize() {
	in.SerialNumber = strings.TrimSpace(in.SerialNumber)
	in.Detail = strings.TrimSpace(in.Detail)
	in.Code = trimOptional(in.Code)
	in.Note = trimOptional(in.Note)
	in.Status = DeviceStatus(strings.ToUpper(strings.TrimSpace(string(in.Status))))
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// Apply copies the editable fields of in onto d.
func (in *DeviceInput) Apply(d *Device) {
	d.ModelID = in.ModelID
	d.TypeID = in.TypeID
	d.SerialNumber = in.SerialNumber
	d.Detail = in.Detail
	d.Code = in.Code
	d.Note = in.Note
	d.PurchasedAt = in.PurchasedAt
	d.Status = in.Status
	d.OwnerID = in.OwnerID
	d.UserID = in.UserID
}
