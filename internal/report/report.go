package report

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"henry/internal/errors"
	"henry/internal/output"
	"henry/internal/source"
)

// Report is the result of one invocation.
//
// GeneratedAt is the time the data was read: the capture time for a snapshot
// source, the current time for a live one. Rendering the same snapshot twice
// therefore gives identical bytes.
type Report struct {
	Kind        Kind        `json:"kind"`
	GeneratedAt time.Time   `json:"generatedAt"`
	Source      source.Info `json:"source"`
	// Records is a slice of the kind's record type.
	Records interface{} `json:"records"`
}

// New builds a report, checking that records is a slice of the kind's record type.
func New(kind Kind, info source.Info, records interface{}) (*Report, error) {
	want := kind.RecordType()
	if want == nil {
		return nil, errors.Newf(errors.InternalError, "unknown report kind %q", kind)
	}
	if records == nil {
		records = reflect.MakeSlice(reflect.SliceOf(want), 0, 0).Interface()
	}
	got := reflect.TypeOf(records)
	if got.Kind() != reflect.Slice || got.Elem() != want {
		return nil, errors.Newf(errors.InternalError, "%s report needs []%s, got %s", kind, want.Name(), got)
	}
	if reflect.ValueOf(records).IsNil() {
		records = reflect.MakeSlice(got, 0, 0).Interface()
	}
	return &Report{
		Kind:        kind,
		GeneratedAt: generatedAt(info),
		Source:      info,
		Records:     records,
	}, nil
}

// generatedAt returns info's capture time when it has one.
func generatedAt(info source.Info) time.Time {
	if info.CapturedAt != "" {
		if t, err := time.Parse(time.RFC3339, info.CapturedAt); err == nil {
			return t.UTC()
		}
	}
	return time.Now().UTC()
}

// Len returns the number of records.
func (r *Report) Len() int {
	return reflect.ValueOf(r.Records).Len()
}

// Columns returns the column names of the report in display order.
func (r *Report) Columns() []string {
	return output.FieldNames(r.Kind.RecordType())
}

// Sort orders records by the named column. An empty key leaves the order alone.
func (r *Report) Sort(key string, descending bool) error {
	if key == "" {
		return nil
	}
	key = strings.ToLower(strings.TrimSpace(key))
	ptr := reflect.New(reflect.TypeOf(r.Records))
	ptr.Elem().Set(reflect.ValueOf(r.Records))

	criteria := []output.SortCriteria{{Field: key, Descending: descending}}
	if err := output.MultiFieldSort(ptr.Interface(), criteria); err != nil {
		return errors.New(errors.ScopeInvalid, "invalid sort key", err).WithDetails(map[string]interface{}{
			"sortKey":   key,
			"validKeys": r.Columns(),
		})
	}
	r.Records = ptr.Elem().Interface()
	return nil
}

// Limit keeps the first n records. n <= 0 keeps everything.
func (r *Report) Limit(n int) {
	v := reflect.ValueOf(r.Records)
	if n <= 0 || n >= v.Len() {
		return
	}
	r.Records = v.Slice(0, n).Interface()
}

// Cells returns each record as display strings, in column order. Lists are
// joined with sep; an empty list shows the field's `empty` tag, if any.
func (r *Report) Cells(sep string) [][]string {
	v := reflect.ValueOf(r.Records)
	typ := v.Type().Elem()
	rows := make([][]string, 0, v.Len())
	for i := 0; i < v.Len(); i++ {
		rec := v.Index(i)
		row := make([]string, rec.NumField())
		for j := 0; j < rec.NumField(); j++ {
			f := rec.Field(j)
			if f.Kind() == reflect.Slice && f.Len() == 0 {
				row[j] = typ.Field(j).Tag.Get("empty")
				continue
			}
			row[j] = cell(f, sep)
		}
		rows = append(rows, row)
	}
	return rows
}

func cell(v reflect.Value, sep string) string {
	if v.Kind() == reflect.Slice {
		parts := make([]string, v.Len())
		for i := range parts {
			parts[i] = fmt.Sprint(v.Index(i).Interface())
		}
		return strings.Join(parts, sep)
	}
	return fmt.Sprintf("%v", v.Interface())
}
