package models

import "time"

// DeviceType groups device models, for example "Laptop" or "Monitor".
type DeviceType struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// DeviceModel is a concrete product that belongs to exactly one type.
type DeviceModel struct {
	ID        int64     `json:"id"`
	TypeID    int64     `json:"type_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Owner is the party that owns a device, such as the company or a client.
type Owner struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// RepairRecord is a row of the repair history kept by the repair subsystem.
type RepairRecord struct {
	ID        int64     `json:"id"`
	DeviceID  int64     `json:"device_id"`
	Note      *string   `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
