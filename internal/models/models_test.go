package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeviceStatus(t *testing.T) {
	assert.True(t, StatusScrapped.Valid())
	assert.False(t, DeviceStatus("LOST").Valid())

	st, err := ParseDeviceStatus(" under_repair ")
	require.NoError(t, err)
	assert.Equal(t, StatusUnderRepair, st)

	_, err = ParseDeviceStatus("gone")
	assert.Error(t, err)
}

func TestDate_JSON(t *testing.T) {
	var in struct {
		PurchasedAt Date `json:"purchased_at"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"purchased_at":"2024-03-15"}`), &in))
	assert.Equal(t, NewDate(2024, time.March, 15), in.PurchasedAt)

	out, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"purchased_at":"2024-03-15"}`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"purchased_at":"15/03/2024"}`), &in))
}

func TestDate_Scan(t *testing.T) {
	var d Date
	require.NoError(t, d.Scan(time.Date(2023, 1, 2, 13, 4, 5, 0, time.UTC)))
	assert.Equal(t, "2023-01-02", d.String())

	require.NoError(t, d.Scan([]byte("2022-12-31")))
	assert.Equal(t, "2022-12-31", d.String())

	require.NoError(t, d.Scan(nil))
	assert.True(t, d.IsZero())

	assert.Error(t, d.Scan(42))
}

func TestDeviceInput_NormalizeAndApply(t *testing.T) {
	blank := "   "
	code := " LT-01 "
	uid := int64(5)
	in := DeviceInput{
		ModelID:      1,
		TypeID:       2,
		SerialNumber: " SN1 ",
		Detail:       " MacBook ",
		Code:         &code,
		Note:         &blank,
		Status:       "healthy",
		UserID:       &uid,
	}
	in.Normalize()
	assert.Equal(t, "SN1", in.SerialNumber)
	assert.Equal(t, "LT-01", *in.Code)
	assert.Nil(t, in.Note)
	assert.Equal(t, StatusHealthy, in.Status)

	var d Device
	in.Apply(&d)
	assert.Equal(t, int64(2), d.TypeID)
	assert.True(t, d.HasAssignee())
}

func TestDeviceAssignment_Overlaps(t *testing.T) {
	day := func(n int) time.Time { return time.Date(2024, 1, n, 0, 0, 0, 0, time.UTC) }
	ptr := func(t time.Time) *time.Time { return &t }

	closed := DeviceAssignment{AssignedAt: day(5), ReturnedAt: ptr(day(10))}
	open := DeviceAssignment{AssignedAt: day(5)}
	now := day(20)

	assert.True(t, closed.Overlaps(nil, nil, now))
	assert.True(t, closed.Overlaps(ptr(day(8)), ptr(day(12)), now))
	assert.False(t, closed.Overlaps(ptr(day(11)), nil, now))
	assert.False(t, closed.Overlaps(nil, ptr(day(4)), now))
	assert.True(t, open.Overlaps(ptr(day(15)), nil, now))
	assert.True(t, open.IsOpen())
	assert.False(t, closed.IsOpen())
}

func TestDeviceFilter_SplitUserIDs(t *testing.T) {
	f := DeviceFilter{UserIDs: []int64{3, NoAssignee, 9}}
	ids, unassigned := f.SplitUserIDs()
	assert.Equal(t, []int64{3, 9}, ids)
	assert.True(t, unassigned)
}

func TestPageRequest_Normalized(t *testing.T) {
	assert.Equal(t, PageRequest{Limit: DefaultPageLimit}, PageRequest{}.Normalized())
	assert.Equal(t, PageRequest{Limit: MaxPageLimit, Offset: 0}, PageRequest{Limit: 1000, Offset: -3}.Normalized())

	p := NewPage[int](nil, PageRequest{Limit: 10}, 0)
	assert.NotNil(t, p.Data)
}

func TestUser_RedactedAndDisplayName(t *testing.T) {
	first := "Ada"
	u := User{ID: 1, Email: "ada@example.com", PasswordHash: "secret", FirstName: &first, Roles: []string{RoleAdmin}}
	assert.Equal(t, "", u.Redacted().PasswordHash)
	assert.Equal(t, "Ada", u.DisplayName())
	assert.True(t, u.HasRole(RoleAdmin))
	assert.False(t, u.HasRole(RoleStaff))
}

func TestParseSort(t *testing.T) {
	keys := ParseSort("-created_at, bogus ,id,", DeviceSortFields)
	assert.Equal(t, []SortKey{{Field: "created_at", Desc: true}, {Field: "id"}}, keys)
	assert.Empty(t, ParseSort("", DeviceSortFields))
}
