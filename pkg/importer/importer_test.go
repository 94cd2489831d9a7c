package importer

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v3"

	"devicehub-api/internal/apperr"
	"devicehub-api/internal/devices"
	"devicehub-api/internal/logging"
	"devicehub-api/internal/models"
	"devicehub-api/internal/store/memstore"
)

type fakeWriter struct {
	created []models.DeviceInput
	checked []models.DeviceInput
	fail    func(in models.DeviceInput) error
}

func (f *fakeWriter) CreateDevice(_ context.Context, in models.DeviceInput) (*models.Device, error) {
	if f.fail != nil {
		if err := f.fail(in); err != nil {
			return nil, err
		}
	}
	f.created = append(f.created, in)
	return &models.Device{ID: int64(len(f.created))}, nil
}

func (f *fakeWriter) CheckDevice(_ context.Context, in models.DeviceInput) error {
	if f.fail != nil {
		if err := f.fail(in); err != nil {
			return err
		}
	}
	f.checked = append(f.checked, in)
	return nil
}

func workbook(t *testing.T, sheet string, rows ...[]string) *bytes.Reader {
	t.Helper()
	f := xlsx.NewFile()
	sh, err := f.AddSheet(sheet)
	require.NoError(t, err)
	for _, r := range rows {
		row := sh.AddRow()
		for _, v := range r {
			row.AddCell().SetString(v)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return bytes.NewReader(buf.Bytes())
}

var header = []string{"Serial Number", "Detail", "Code", "Purchased At", "Type ID", "Model ID", "User ID"}

func TestImportExcel_CreatesOneDevicePerRow(t *testing.T) {
	w := &fakeWriter{}
	r := workbook(t, "Devices",
		header,
		[]string{"SN-1", "14 inch laptop", "LT-001", "2024-01-15", "1", "2", "5"},
		[]string{"SN-2", "27 inch monitor", "", "03/04/2023", "2", "3", ""},
	)

	sum, err := ImportExcel(context.Background(), w, r, ImportOptions{})
	require.NoError(t, err)

	assert.Equal(t, 2, sum.Inserted)
	assert.Zero(t, sum.Errors)
	require.Len(t, sum.Sheets, 1)
	assert.Equal(t, "Devices", sum.Sheets[0].Name)

	require.Len(t, w.created, 2)
	first := w.created[0]
	assert.Equal(t, "SN-1", first.SerialNumber)
	assert.Equal(t, "14 inch laptop", first.Detail)
	require.NotNil(t, first.Code)
	assert.Equal(t, "LT-001", *first.Code)
	assert.Equal(t, "2024-01-15", first.PurchasedAt.String())
	assert.Equal(t, int64(1), first.TypeID)
	assert.Equal(t, int64(2), first.ModelID)
	require.NotNil(t, first.UserID)
	assert.Equal(t, int64(5), *first.UserID)
	assert.Equal(t, models.DeviceStatus("HEALTHY"), first.Status, "status falls back to the mapping default")

	second := w.created[1]
	assert.Nil(t, second.Code)
	assert.Nil(t, second.UserID)
	assert.Equal(t, "2023-03-04", second.PurchasedAt.String())
}

func TestImportExcel_HeaderAliases(t *testing.T) {
	w := &fakeWriter{}
	r := workbook(t, "Sheet1",
		[]string{"S/N", "Description", "purchase  date", "type_id", "MODEL_ID", "Status"},
		[]string{"SN-9", "Phone", "2022-12-01", "3", "4", "broken"},
	)

	sum, err := ImportExcel(context.Background(), w, r, ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Inserted)
	require.Len(t, w.created, 1)
	assert.Equal(t, "SN-9", w.created[0].SerialNumber)
	assert.Equal(t, models.DeviceStatus("broken"), w.created[0].Status)
}

func TestImportExcel_SkipsExistingCodesAndBlankRows(t *testing.T) {
	w := &fakeWriter{fail: func(in models.DeviceInput) error {
		if in.Code != nil && *in.Code == "DUP" {
			return apperr.BadRequest(apperr.CodeDeviceCodeExists, "taken")
		}
		return nil
	}}
	r := workbook(t, "Devices",
		header,
		[]string{"SN-1", "a", "DUP", "2024-01-01", "1", "1", ""},
		[]string{"", "", "", "", "", "", ""},
		[]string{"SN-3", "c", "NEW", "2024-01-01", "1", "1", ""},
	)

	sum, err := ImportExcel(context.Background(), w, r, ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Inserted)
	assert.Equal(t, 2, sum.Skipped)
	assert.Zero(t, sum.Errors)
}

func TestImportExcel_RowErrorsAreSampled(t *testing.T) {
	w := &fakeWriter{fail: func(in models.DeviceInput) error {
		if in.ModelID == 99 {
			return apperr.NotFound(apperr.CodeDeviceModelNotFound, "device model 99 not found")
		}
		return nil
	}}
	r := workbook(t, "Devices",
		header,
		[]string{"SN-1", "a", "", "2024-01-01", "1", "99", ""},
		[]string{"SN-2", "b", "", "not a date", "1", "1", ""},
		[]string{"SN-3", "c", "", "2024-01-01", "x", "1", ""},
		[]string{"SN-4", "d", "", "2024-01-01", "1", "1", ""},
	)

	sum, err := ImportExcel(context.Background(), w, r, ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Inserted)
	assert.Equal(t, 3, sum.Errors)

	samples := sum.Sheets[0].Samples
	require.Len(t, samples, 3)
	assert.Equal(t, 2, samples[0].Row)
	assert.Equal(t, apperr.CodeDeviceModelNotFound, samples[0].Code)
	assert.Equal(t, 3, samples[1].Row)
	assert.Contains(t, samples[1].Message, "purchased_at")
	assert.Equal(t, 4, samples[2].Row)
	assert.Contains(t, samples[2].Message, "type_id")
}

func TestImportExcel_DryRunOnlyChecks(t *testing.T) {
	w := &fakeWriter{}
	r := workbook(t, "Devices",
		header,
		[]string{"SN-1", "a", "", "2024-01-01", "1", "1", ""},
	)

	sum, err := ImportExcel(context.Background(), w, r, ImportOptions{DryRun: true})
	require.NoError(t, err)
	assert.True(t, sum.DryRun)
	assert.Equal(t, 1, sum.Inserted)
	assert.Len(t, w.checked, 1)
	assert.Empty(t, w.created)
}

func TestImportExcel_StopsAfterMaxErrors(t *testing.T) {
	w := &fakeWriter{fail: func(models.DeviceInput) error {
		return apperr.BadRequest(apperr.CodeValidation, "bad")
	}}
	rows := [][]string{header}
	for i := 0; i < 5; i++ {
		rows = append(rows, []string{"SN", "d", "", "2024-01-01", "1", "1", ""})
	}

	sum, err := ImportExcel(context.Background(), w, workbook(t, "Devices", rows...), ImportOptions{MaxErrors: 2})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTooManyErrors))
	assert.Equal(t, 3, sum.Errors)
}

func TestImportExcel_InternalErrorAborts(t *testing.T) {
	boom := errors.New("connection reset")
	w := &fakeWriter{fail: func(models.DeviceInput) error { return boom }}
	r := workbook(t, "Devices",
		header,
		[]string{"SN-1", "a", "", "2024-01-01", "1", "1", ""},
		[]string{"SN-2", "b", "", "2024-01-01", "1", "1", ""},
	)

	sum, err := ImportExcel(context.Background(), w, r, ImportOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, sum.Errors)
}

func TestImportExcel_MissingRequiredColumn(t *testing.T) {
	w := &fakeWriter{}
	r := workbook(t, "Devices",
		[]string{"Serial Number", "Detail"},
		[]string{"SN-1", "a"},
	)

	sum, err := ImportExcel(context.Background(), w, r, ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Errors)
	assert.Equal(t, 1, sum.Sheets[0].Samples[0].Row)
	assert.Contains(t, sum.Sheets[0].Samples[0].Message, "required column")
	assert.Empty(t, w.created)
}

func TestImportExcel_IgnoresUnmappedSheets(t *testing.T) {
	m, err := ParseMapping(strings.NewReader(`
version: 1
sheets:
  Laptops:
    columns:
      SN: {field: serial_number, type: TEXT}
`))
	require.NoError(t, err)

	sum, err := ImportExcel(context.Background(), &fakeWriter{}, workbook(t, "Monitors", []string{"SN"}, []string{"1"}), ImportOptions{Mapping: m})
	require.NoError(t, err)
	assert.Empty(t, sum.Sheets)
}

func TestImportExcel_RejectsNonWorkbook(t *testing.T) {
	_, err := ImportExcel(context.Background(), &fakeWriter{}, strings.NewReader("not a zip"), ImportOptions{})
	assert.Error(t, err)
}

func TestImportExcel_WithDeviceService(t *testing.T) {
	st := memstore.New()
	laptop := st.AddType("Laptop")
	mbp := st.AddModel(laptop.ID, "MacBook Pro")
	st.AddUser(models.User{ID: 42, Email: "holder@example.com", Roles: []string{models.RoleStaff}, IsActive: true})
	svc := devices.NewService(st, devices.WithLogger(logging.Discard()))

	r := workbook(t, "Devices",
		header,
		[]string{"SN-1", "laptop", "LT-1", "2024-01-01", itoa(laptop.ID), itoa(mbp.ID), "42"},
		[]string{"SN-2", "laptop", "LT-1", "2024-01-01", itoa(laptop.ID), itoa(mbp.ID), ""},
	)

	sum, err := ImportExcel(context.Background(), svc, r, ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Inserted)
	assert.Equal(t, 1, sum.Skipped, "second row reuses the code")

	page, err := svc.ListAssignmentHistory(context.Background(), 0, models.AssignmentFilter{}, models.PageRequest{})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, int64(42), page.Data[0].UserID)
	assert.Nil(t, page.Data[0].ReturnedAt)
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}

func TestParseMapping(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name: "valid",
			yaml: `
version: 1
defaults: {status: HEALTHY}
sheets:
  "*":
    columns:
      Serial: {field: serial_number, type: TEXT}
      Bought: {field: purchased_at, type: DATE}
    aliases:
      Serial: ["S/N"]
`,
		},
		{name: "no sheets", yaml: "version: 1\n", wantErr: "no sheets"},
		{
			name:    "unknown field",
			yaml:    "sheets:\n  x:\n    columns:\n      A: {field: colour, type: TEXT}\n",
			wantErr: "unknown field",
		},
		{
			name:    "unknown type",
			yaml:    "sheets:\n  x:\n    columns:\n      A: {field: note, type: BLOB}\n",
			wantErr: "unknown type",
		},
		{
			name:    "alias for missing column",
			yaml:    "sheets:\n  x:\n    columns:\n      A: {field: note, type: TEXT}\n    aliases:\n      B: [b]\n",
			wantErr: "alias",
		},
		{name: "unknown key", yaml: "version: 1\ncolumns: {}\n", wantErr: "decode mapping"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := ParseMapping(strings.NewReader(tt.yaml))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			sc, ok := m.sheet("anything")
			require.True(t, ok)
			assert.Len(t, sc.Columns, 2)
		})
	}
}

func TestDefaultMappingIsValid(t *testing.T) {
	assert.NoError(t, DefaultMapping().Validate())
}

func TestParseID(t *testing.T) {
	n, err := parseID("12")
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)

	n, err = parseID("12.0")
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)

	_, err = parseID("1.5")
	assert.Error(t, err)
	_, err = parseID("abc")
	assert.Error(t, err)
}

func TestParseDate(t *testing.T) {
	for _, s := range []string{"2024-02-29", "2024/02/29", "02/29/2024", "2024-02-29 10:00:00"} {
		d, err := parseDate(s)
		require.NoError(t, err, s)
		assert.Equal(t, "2024-02-29", d.String(), s)
	}
	_, err := parseDate("29.02.2024")
	assert.Error(t, err)
}
