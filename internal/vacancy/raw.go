package vacancy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Named is any nested hh.ru dictionary object that exposes a display name
// (area, experience, employment, schedule, professional role).
type Named struct {
	Name string
}

// Salary is the nested salary object. Bounds are nil when the API sent null.
type Salary struct {
	From     *float64
	To       *float64
	Currency string
}

// RawVacancy is a typed view over a loosely structured raw document. Every
// nested field is optional: absent or null values decode to nil, and values of
// an unexpected JSON shape decode to their zero value instead of failing the
// whole record.
type RawVacancy struct {
	ID                string
	Name              string
	Salary            *Salary
	Area              *Named
	Experience        *Named
	Employment        *Named
	Schedule          *Named
	ProfessionalRoles []Named
	Archived          bool
	PublishedAt       string
}

// UnmarshalJSON decodes a raw document. Only a non-object document is an error.
func (v *RawVacancy) UnmarshalJSON(data []byte) error {
	fields, err := objectFields(data)
	if err != nil {
		return fmt.Errorf("decode vacancy document: %w", err)
	}
	*v = RawVacancy{
		ID:                idValue(fields["id"]),
		Name:              stringValue(fields["name"]),
		Salary:            salaryValue(fields["salary"]),
		Area:              namedValue(fields["area"]),
		Experience:        namedValue(fields["experience"]),
		Employment:        namedValue(fields["employment"]),
		Schedule:          namedValue(fields["schedule"]),
		ProfessionalRoles: rolesValue(fields["professional_roles"]),
		Archived:          boolValue(fields["archived"]),
		PublishedAt:       stringValue(fields["published_at"]),
	}
	return nil
}

// ParseHeader extracts the identifier and archived flag from an API item
// without decoding the rest of it.
func ParseHeader(item json.RawMessage) (string, bool, error) {
	fields, err := objectFields(item)
	if err != nil {
		return "", false, fmt.Errorf("decode vacancy item: %w", err)
	}
	return idValue(fields["id"]), boolValue(fields["archived"]), nil
}

func objectFields(data []byte) (map[string]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("expected a JSON object")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, err //nolint:wrapcheck // wrapped by callers
	}
	return fields, nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// idValue renders the identifier as a string whether the API sent it as a
// JSON string or a number.
func idValue(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if i, err := n.Int64(); err == nil {
			return strconv.FormatInt(i, 10)
		}
		return n.String()
	}
	return ""
}

func stringValue(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func boolValue(raw json.RawMessage) bool {
	if isNull(raw) {
		return false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return false
	}
	return b
}

func numberValue(raw json.RawMessage) *float64 {
	if isNull(raw) {
		return nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil
	}
	return &f
}

func namedValue(raw json.RawMessage) *Named {
	if isNull(raw) {
		return nil
	}
	fields, err := objectFields(raw)
	if err != nil {
		return &Named{}
	}
	return &Named{Name: stringValue(fields["name"])}
}

func salaryValue(raw json.RawMessage) *Salary {
	if isNull(raw) {
		return nil
	}
	fields, err := objectFields(raw)
	if err != nil {
		return nil
	}
	return &Salary{
		From:     numberValue(fields["from"]),
		To:       numberValue(fields["to"]),
		Currency: stringValue(fields["currency"]),
	}
}

func rolesValue(raw json.RawMessage) []Named {
	if isNull(raw) {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	roles := make([]Named, 0, len(items))
	for _, item := range items {
		if named := namedValue(item); named != nil {
			roles = append(roles, *named)
		} else {
			roles = append(roles, Named{})
		}
	}
	return roles
}
