// internal/model/lead.go
package model

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/structs"
)

// LeadFields are the typed contact attributes every lead may carry.
// Field names are the internal names campaign mappings point at.
type LeadFields struct {
	ExternalID    string     `json:"externalId,omitempty"`
	Email         string     `json:"email,omitempty"`
	FirstName     string     `json:"firstName,omitempty"`
	LastName      string     `json:"lastName,omitempty"`
	FullName      string     `json:"fullName,omitempty"`
	Source        string     `json:"source,omitempty"`
	Amount        *float64   `json:"amount,omitempty"`
	LeadStatus    string     `json:"leadStatus,omitempty"`
	Address       string     `json:"address,omitempty"`
	FollowUp      *time.Time `json:"followUp,omitempty"`
	CompanyName   string     `json:"companyName,omitempty"`
	State         string     `json:"state,omitempty"`
	Pincode       *int64     `json:"pincode,omitempty"`
	NextAction    string     `json:"nextAction,omitempty"`
	DocumentLinks []string   `json:"documentLinks,omitempty"`
}

// Lead is the reconciled entity. Extra holds every column that is not a core
// field, verbatim and in spreadsheet order.
type Lead struct {
	ID           string     `json:"id,omitempty"`
	Core         LeadFields `json:"core"`
	Extra        Fields     `json:"extra,omitempty"`
	Campaign     string     `json:"campaign"`
	CampaignID   string     `json:"campaignId"`
	Organization string     `json:"organization"`
	Uploader     string     `json:"uploader"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// Metadata field names, set by the pipeline rather than the spreadsheet.
const (
	FieldID           = "id"
	FieldCampaign     = "campaign"
	FieldCampaignID   = "campaignId"
	FieldOrganization = "organization"
	FieldUploader     = "uploader"
	FieldCreatedAt    = "createdAt"
	FieldUpdatedAt    = "updatedAt"
)

var reserved = map[string]bool{
	FieldID: true, "_id": true, FieldCampaign: true, FieldCampaignID: true,
	FieldOrganization: true, FieldUploader: true, FieldCreatedAt: true, FieldUpdatedAt: true,
	"naturalKey": true,
}

// IsReserved reports whether name is a metadata field that spreadsheet columns cannot set.
func IsReserved(name string) bool { return reserved[name] }

var coreNames = func() map[string]bool {
	names := make(map[string]bool)
	for _, f := range structs.New(LeadFields{}).Fields() {
		names[jsonName(f)] = true
	}
	return names
}()

// IsCoreField reports whether name is one of the typed lead fields.
func IsCoreField(name string) bool { return coreNames[name] }

func jsonName(f *structs.Field) string {
	name, _, _ := strings.Cut(f.Tag("json"), ",")
	if name == "" {
		return f.Name()
	}
	return name
}

// Values returns the set core fields in declaration order with pointers dereferenced.
func (lf LeadFields) Values() Fields {
	var out Fields
	for _, f := range structs.New(lf).Fields() {
		if f.IsZero() {
			continue
		}
		v := reflect.ValueOf(f.Value())
		if v.Kind() == reflect.Ptr {
			v = v.Elem()
		}
		out = append(out, Field{Name: jsonName(f), Value: v.Interface()})
	}
	return out
}

func (lf *LeadFields) set(name string, v any) error {
	var err error
	switch name {
	case "externalId":
		lf.ExternalID, err = toString(v)
	case "email":
		lf.Email, err = toString(v)
	case "firstName":
		lf.FirstName, err = toString(v)
	case "lastName":
		lf.LastName, err = toString(v)
	case "fullName":
		lf.FullName, err = toString(v)
	case "source":
		lf.Source, err = toString(v)
	case "amount":
		var n float64
		if n, err = toFloat(v); err == nil {
			lf.Amount = &n
		}
	case "leadStatus":
		lf.LeadStatus, err = toString(v)
	case "address":
		lf.Address, err = toString(v)
	case "followUp":
		var t time.Time
		if t, err = toTime(v); err == nil {
			lf.FollowUp = &t
		}
	case "companyName":
		lf.CompanyName, err = toString(v)
	case "state":
		lf.State, err = toString(v)
	case "pincode":
		var n int64
		if n, err = toInt(v); err == nil {
			lf.Pincode = &n
		}
	case "nextAction":
		lf.NextAction, err = toString(v)
	case "documentLinks":
		lf.DocumentLinks, err = toStringList(v)
	default:
		return fmt.Errorf("unknown lead field %q", name)
	}
	if err != nil {
		return fmt.Errorf("field %s: %w", name, err)
	}
	return nil
}

// LeadFromRecord builds a lead from a decoded row. Core fields are coerced to
// their types; a value that cannot be coerced fails the whole row.
func LeadFromRecord(rec *Record) (*Lead, error) {
	return LeadFromFields(rec.Fields())
}

// LeadFromFields is LeadFromRecord for an arbitrary ordered field list.
// Reserved metadata names are ignored.
func LeadFromFields(fs Fields) (*Lead, error) {
	lead := &Lead{}
	for _, f := range fs {
		switch {
		case IsReserved(f.Name):
			continue
		case IsCoreField(f.Name):
			if err := lead.Core.set(f.Name, f.Value); err != nil {
				return nil, err
			}
		default:
			lead.Extra = append(lead.Extra, f)
		}
	}
	return lead, nil
}

// Value looks a field up by internal name across core and extra fields.
func (l *Lead) Value(name string) (any, bool) {
	if IsCoreField(name) {
		return l.Core.Values().Get(name)
	}
	return l.Extra.Get(name)
}

// Document is the stored field set: core, extra, then metadata.
func (l *Lead) Document() Fields {
	out := l.Core.Values()
	out = append(out, l.Extra...)
	return append(out,
		Field{Name: FieldCampaign, Value: l.Campaign},
		Field{Name: FieldCampaignID, Value: l.CampaignID},
		Field{Name: FieldOrganization, Value: l.Organization},
		Field{Name: FieldUploader, Value: l.Uploader},
	)
}

// Snapshot is the document plus store-assigned identity and timestamps,
// as written to result sheets.
func (l *Lead) Snapshot() Fields {
	var out Fields
	if l.ID != "" {
		out = append(out, Field{Name: FieldID, Value: l.ID})
	}
	out = append(out, l.Document()...)
	if !l.CreatedAt.IsZero() {
		out = append(out, Field{Name: FieldCreatedAt, Value: l.CreatedAt})
	}
	if !l.UpdatedAt.IsZero() {
		out = append(out, Field{Name: FieldUpdatedAt, Value: l.UpdatedAt})
	}
	return out
}

func toString(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), nil
	case int:
		return strconv.Itoa(t), nil
	case int32:
		return strconv.FormatInt(int64(t), 10), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case bool:
		return strconv.FormatBool(t), nil
	case time.Time:
		return t.Format(time.RFC3339), nil
	case nil:
		return "", nil
	}
	return fmt.Sprint(v), nil
}

func toFloat(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int32:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(t), ",", "")
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", t)
		}
		return n, nil
	}
	return 0, fmt.Errorf("unsupported number value %v (%T)", v, v)
}

func toInt(v any) (int64, error) {
	switch t := v.(type) {
	case int:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case int64:
		return t, nil
	}
	f, err := toFloat(v)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("%v is not a whole number", v)
	}
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, fmt.Errorf("%v is out of range", v)
	}
	return int64(f), nil
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
	"01-02-06",
	"02 Jan 2006",
}

// excelEpoch is day zero of the 1900 date system once the 1900 leap-year bug is accounted for.
var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

func toTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case float64:
		d := time.Duration(math.Round(t*86400)) * time.Second
		return excelEpoch.Add(d), nil
	case int64:
		return excelEpoch.AddDate(0, 0, int(t)), nil
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range dateLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts, nil
			}
		}
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return toTime(n)
		}
		return time.Time{}, fmt.Errorf("%q is not a date", t)
	}
	return time.Time{}, fmt.Errorf("unsupported date value %v (%T)", v, v)
}

func toStringList(v any) ([]string, error) {
	var parts []string
	switch t := v.(type) {
	case []string:
		parts = t
	case []any:
		for _, item := range t {
			s, err := toString(item)
			if err != nil {
				return nil, err
			}
			parts = append(parts, s)
		}
	default:
		s, err := toString(v)
		if err != nil {
			return nil, err
		}
		parts = strings.Split(s, ",")
	}
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out, nil
}
