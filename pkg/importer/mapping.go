package importer

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Device fields a column can map onto.
const (
	FieldSerialNumber = "serial_number"
	FieldDetail       = "detail"
	FieldCode         = "code"
	FieldNote         = "note"
	FieldPurchasedAt  = "purchased_at"
	FieldStatus       = "status"
	FieldTypeID       = "type_id"
	FieldModelID      = "model_id"
	FieldOwnerID      = "owner_id"
	FieldUserID       = "user_id"
)

var knownFields = map[string]string{
	FieldSerialNumber: "TEXT",
	FieldDetail:       "TEXT",
	FieldCode:         "TEXT",
	FieldNote:         "TEXT",
	FieldPurchasedAt:  "DATE",
	FieldStatus:       "TEXT",
	FieldTypeID:       "INT",
	FieldModelID:      "INT",
	FieldOwnerID:      "INT",
	FieldUserID:       "INT",
}

// AnySheet is the sheet key that applies to sheets without their own entry.
const AnySheet = "*"

// MappingConfig maps spreadsheet columns onto device fields.
type MappingConfig struct {
	Version  int                    `yaml:"version"`
	Defaults map[string]string      `yaml:"defaults"`
	Sheets   map[string]SheetConfig `yaml:"sheets"`
}

type SheetConfig struct {
	// Columns is keyed by header text.
	Columns map[string]ColumnConfig `yaml:"columns"`
	// Aliases lists alternative header texts for a column key.
	Aliases map[string][]string `yaml:"aliases"`
}

type ColumnConfig struct {
	Field string `yaml:"field"`
	// Type is TEXT, INT or DATE. A trailing '?' marks the column optional.
	Type string `yaml:"type"`
}

// Optional reports whether a blank cell is allowed.
func (c ColumnConfig) Optional() bool {
	return strings.HasSuffix(c.Type, "?")
}

func (c ColumnConfig) baseType() string {
	return strings.ToUpper(strings.TrimSuffix(c.Type, "?"))
}

// sheet returns the configuration that applies to a sheet name.
func (m *MappingConfig) sheet(name string) (SheetConfig, bool) {
	if sc, ok := m.Sheets[name]; ok {
		return sc, true
	}
	for key, sc := range m.Sheets {
		if strings.EqualFold(key, name) {
			return sc, true
		}
	}
	sc, ok := m.Sheets[AnySheet]
	return sc, ok
}

// Validate rejects mappings that point at unknown fields or types.
func (m *MappingConfig) Validate() error {
	if len(m.Sheets) == 0 {
		return fmt.Errorf("mapping has no sheets")
	}
	for name, sc := range m.Sheets {
		for header, col := range sc.Columns {
			if _, ok := knownFields[col.Field]; !ok {
				return fmt.Errorf("sheet %q column %q: unknown field %q", name, header, col.Field)
			}
			switch col.baseType() {
			case "TEXT", "INT", "DATE":
			default:
				return fmt.Errorf("sheet %q column %q: unknown type %q", name, header, col.Type)
			}
		}
		for key := range sc.Aliases {
			if _, ok := sc.Columns[key]; !ok {
				return fmt.Errorf("sheet %q: alias for unknown column %q", name, key)
			}
		}
	}
	for field := range m.Defaults {
		if _, ok := knownFields[field]; !ok {
			return fmt.Errorf("default for unknown field %q", field)
		}
	}
	return nil
}

// ParseMapping decodes and validates a YAML mapping.
func ParseMapping(r io.Reader) (*MappingConfig, error) {
	var m MappingConfig
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode mapping: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// LoadMapping reads a mapping file. An empty path yields DefaultMapping.
func LoadMapping(path string) (*MappingConfig, error) {
	if path == "" {
		return DefaultMapping(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open mapping: %w", err)
	}
	defer f.Close()
	return ParseMapping(f)
}

// DefaultMapping accepts any sheet whose headers match the device field names.
func DefaultMapping() *MappingConfig {
	return &MappingConfig{
		Version:  1,
		Defaults: map[string]string{FieldStatus: "HEALTHY"},
		Sheets: map[string]SheetConfig{
			AnySheet: {
				Columns: map[string]ColumnConfig{
					"Serial Number": {Field: FieldSerialNumber, Type: "TEXT"},
					"Detail":        {Field: FieldDetail, Type: "TEXT"},
					"Code":          {Field: FieldCode, Type: "TEXT?"},
					"Note":          {Field: FieldNote, Type: "TEXT?"},
					"Purchased At":  {Field: FieldPurchasedAt, Type: "DATE"},
					"Status":        {Field: FieldStatus, Type: "TEXT?"},
					"Type ID":       {Field: FieldTypeID, Type: "INT"},
					"Model ID":      {Field: FieldModelID, Type: "INT"},
					"Owner ID":      {Field: FieldOwnerID, Type: "INT?"},
					"User ID":       {Field: FieldUserID, Type: "INT?"},
				},
				Aliases: map[string][]string{
					"Serial Number": {"Serial", "S/N", "serial_number"},
					"Detail":        {"Description", "detail"},
					"Code":          {"Asset Code", "Asset Tag", "code"},
					"Purchased At":  {"Purchase Date", "purchased_at"},
					"Type ID":       {"type_id"},
					"Model ID":      {"model_id"},
					"Owner ID":      {"owner_id"},
					"User ID":       {"Assignee ID", "user_id"},
					"Note":          {"Notes", "note"},
					"Status":        {"status"},
				},
			},
		},
	}
}
