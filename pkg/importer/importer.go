// Package importer loads devices from xlsx workbooks. Every row goes through
// the device service, so imported devices obey the same rules as devices
// created over the API and each row commits on its own.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/tealeg/xlsx/v3"

	"devicehub-api/internal/apperr"
	"devicehub-api/internal/models"
)

const (
	defaultMaxErrors = 50
	maxSamples       = 20
)

// DeviceWriter is the part of the device service an import needs.
type DeviceWriter interface {
	CreateDevice(ctx context.Context, in models.DeviceInput) (*models.Device, error)
	CheckDevice(ctx context.Context, in models.DeviceInput) error
}

type ImportOptions struct {
	// Mapping defaults to DefaultMapping.
	Mapping *MappingConfig
	// DryRun checks every row without creating devices.
	DryRun bool
	// MaxErrors stops the import once exceeded. Defaults to 50.
	MaxErrors int
}

// RowError describes one rejected row.
type RowError struct {
	Sheet   string `json:"sheet"`
	Row     int    `json:"row"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

type SheetSummary struct {
	Name     string     `json:"name"`
	Inserted int        `json:"inserted"`
	Skipped  int        `json:"skipped"`
	Errors   int        `json:"errors"`
	Samples  []RowError `json:"error_samples,omitempty"`
}

type ImportSummary struct {
	Inserted int            `json:"inserted"`
	Skipped  int            `json:"skipped"`
	Errors   int            `json:"errors"`
	Sheets   []SheetSummary `json:"sheets"`
	DryRun   bool           `json:"dry_run"`
}

// ErrTooManyErrors is returned, wrapped, once MaxErrors rows were rejected.
var ErrTooManyErrors = errors.New("too many errors")

// ImportExcel reads the workbook in r and creates one device per data row of
// every mapped sheet. Rows whose code already exists are skipped so a
// workbook can be imported again.
func ImportExcel(ctx context.Context, w DeviceWriter, r io.Reader, opts ImportOptions) (ImportSummary, error) {
	summary := ImportSummary{DryRun: opts.DryRun, Sheets: []SheetSummary{}}
	if opts.Mapping == nil {
		opts.Mapping = DefaultMapping()
	}
	if opts.MaxErrors <= 0 {
		opts.MaxErrors = defaultMaxErrors
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return summary, fmt.Errorf("read workbook: %w", err)
	}
	wb, err := xlsx.OpenBinary(data)
	if err != nil {
		return summary, fmt.Errorf("open workbook: %w", err)
	}

	for _, sheet := range wb.Sheets {
		sc, ok := opts.Mapping.sheet(sheet.Name)
		if !ok {
			continue
		}
		p := &sheetProcessor{
			w:        w,
			sheet:    sheet,
			config:   sc,
			defaults: opts.Mapping.Defaults,
			dryRun:   opts.DryRun,
			budget:   opts.MaxErrors - summary.Errors,
			date1904: wb.Date1904,
		}
		ss, err := p.run(ctx)
		summary.Sheets = append(summary.Sheets, ss)
		summary.Inserted += ss.Inserted
		summary.Skipped += ss.Skipped
		summary.Errors += ss.Errors
		if err != nil {
			return summary, err
		}
	}
	return summary, nil
}

type sheetProcessor struct {
	w        DeviceWriter
	sheet    *xlsx.Sheet
	config   SheetConfig
	defaults map[string]string
	dryRun   bool
	budget   int
	date1904 bool
}

func (p *sheetProcessor) run(ctx context.Context) (SheetSummary, error) {
	summary := SheetSummary{Name: p.sheet.Name}
	fail := func(row int, err error) {
		summary.Errors++
		if len(summary.Samples) < maxSamples {
			summary.Samples = append(summary.Samples, rowError(p.sheet.Name, row, err))
		}
	}

	if p.sheet.MaxRow == 0 {
		return summary, nil
	}
	header, err := p.sheet.Row(0)
	if err != nil {
		fail(1, fmt.Errorf("read header row: %w", err))
		return summary, nil
	}
	columns, err := p.resolveHeader(header)
	if err != nil {
		fail(1, err)
		return summary, nil
	}

	for rowIdx := 1; rowIdx < p.sheet.MaxRow; rowIdx++ {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		row, err := p.sheet.Row(rowIdx)
		if err != nil {
			break
		}

		values := p.rowValues(row, columns)
		if len(values) == 0 {
			summary.Skipped++
			continue
		}

		in, err := p.buildInput(values)
		if err != nil {
			fail(rowIdx+1, err)
		} else {
			err = p.write(ctx, in)
			switch {
			case err == nil:
				summary.Inserted++
			case apperr.CodeOf(err) == apperr.CodeDeviceCodeExists:
				summary.Skipped++
			case apperr.CodeOf(err) == "" || apperr.IsKind(err, apperr.KindInternal):
				fail(rowIdx+1, err)
				return summary, fmt.Errorf("sheet %q row %d: %w", p.sheet.Name, rowIdx+1, err)
			default:
				fail(rowIdx+1, err)
			}
		}
		if summary.Errors > p.budget {
			return summary, fmt.Errorf("%w (%d), stopping import", ErrTooManyErrors, summary.Errors)
		}
	}
	return summary, nil
}

func (p *sheetProcessor) write(ctx context.Context, in models.DeviceInput) error {
	if p.dryRun {
		return p.w.CheckDevice(ctx, in)
	}
	_, err := p.w.CreateDevice(ctx, in)
	return err
}

// resolveHeader maps column indexes to column configs using header text and aliases.
func (p *sheetProcessor) resolveHeader(header *xlsx.Row) (map[int]ColumnConfig, error) {
	lookup := make(map[string]ColumnConfig)
	for name, col := range p.config.Columns {
		lookup[normalizeHeader(name)] = col
		for _, alias := range p.config.Aliases[name] {
			lookup[normalizeHeader(alias)] = col
		}
	}

	columns := make(map[int]ColumnConfig)
	seen := make(map[string]bool)
	for colIdx := 0; colIdx < p.sheet.MaxCol; colIdx++ {
		text := normalizeHeader(header.GetCell(colIdx).String())
		if text == "" {
			continue
		}
		col, ok := lookup[text]
		if !ok {
			continue
		}
		if seen[col.Field] {
			return nil, fmt.Errorf("field %s is mapped by more than one column", col.Field)
		}
		seen[col.Field] = true
		columns[colIdx] = col
	}

	for name, col := range p.config.Columns {
		if !col.Optional() && !seen[col.Field] {
			if _, hasDefault := p.defaults[col.Field]; !hasDefault {
				return nil, fmt.Errorf("required column %q not found", name)
			}
		}
	}
	return columns, nil
}

// rowValues returns the non-blank cells of row keyed by device field.
func (p *sheetProcessor) rowValues(row *xlsx.Row, columns map[int]ColumnConfig) map[string]string {
	values := make(map[string]string)
	for colIdx, col := range columns {
		cell := row.GetCell(colIdx)
		var v string
		if col.baseType() == "DATE" && cell.IsTime() {
			if t, err := cell.GetTime(p.date1904); err == nil {
				v = t.Format("2006-01-02")
			}
		}
		if v == "" {
			v = strings.TrimSpace(cell.String())
		}
		if v != "" {
			values[col.Field] = v
		}
	}
	return values
}

func (p *sheetProcessor) buildInput(values map[string]string) (models.DeviceInput, error) {
	get := func(field string) (string, bool) {
		if v, ok := values[field]; ok {
			return v, true
		}
		v, ok := p.defaults[field]
		return v, ok && v != ""
	}

	var in models.DeviceInput
	if v, ok := get(FieldSerialNumber); ok {
		in.SerialNumber = v
	}
	if v, ok := get(FieldDetail); ok {
		in.Detail = v
	}
	if v, ok := get(FieldCode); ok {
		in.Code = &v
	}
	if v, ok := get(FieldNote); ok {
		in.Note = &v
	}
	if v, ok := get(FieldStatus); ok {
		in.Status = models.DeviceStatus(v)
	}
	if v, ok := get(FieldPurchasedAt); ok {
		d, err := parseDate(v)
		if err != nil {
			return in, fmt.Errorf("%s: %w", FieldPurchasedAt, err)
		}
		in.PurchasedAt = d
	}

	ids := []struct {
		field string
		dst   *int64
	}{
		{FieldTypeID, &in.TypeID},
		{FieldModelID, &in.ModelID},
	}
	for _, f := range ids {
		if v, ok := get(f.field); ok {
			n, err := parseID(v)
			if err != nil {
				return in, fmt.Errorf("%s: %w", f.field, err)
			}
			*f.dst = n
		}
	}

	optional := []struct {
		field string
		dst   **int64
	}{
		{FieldOwnerID, &in.OwnerID},
		{FieldUserID, &in.UserID},
	}
	for _, f := range optional {
		if v, ok := get(f.field); ok {
			n, err := parseID(v)
			if err != nil {
				return in, fmt.Errorf("%s: %w", f.field, err)
			}
			*f.dst = &n
		}
	}
	return in, nil
}

func normalizeHeader(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), " "))
}

// parseID accepts integers, including spreadsheet renderings such as "12.0".
func parseID(s string) (int64, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int64(f)) {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return int64(f), nil
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"01/02/2006",
	"1/2/06",
	time.RFC3339,
}

func parseDate(s string) (models.Date, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return models.NewDate(t.Year(), t.Month(), t.Day()), nil
		}
	}
	return models.Date{}, fmt.Errorf("invalid date %q", s)
}

func rowError(sheet string, row int, err error) RowError {
	re := RowError{Sheet: sheet, Row: row, Message: err.Error()}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		re.Code = ae.Code
		re.Message = ae.Message
		if details, ok := ae.Details.([]apperr.ValidationDetail); ok && len(details) > 0 {
			msgs := make([]string, 0, len(details))
			for _, d := range details {
				msgs = append(msgs, d.Message)
			}
			re.Message = strings.Join(msgs, "; ")
		}
	}
	return re
}
