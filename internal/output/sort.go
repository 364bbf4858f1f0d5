package output

import (
	"cmp"
	"fmt"
	"reflect"
	"slices"
	"strings"
)

// SortCriteria names one sort column and its direction.
type SortCriteria struct {
	Field      string // json tag or Go field name
	Descending bool
}

// column is a resolved SortCriteria.
type column struct {
	index int
	desc  bool
}

// MultiFieldSort stably sorts *[]T or *[]*T, T a struct, by criteria in
// order. Every criterion is resolved before the slice is touched, so an
// unknown column leaves it as it was.
func MultiFieldSort(slice interface{}, criteria []SortCriteria) error {
	ptr := reflect.ValueOf(slice)
	if ptr.Kind() != reflect.Ptr || ptr.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("sort target must be a pointer to a slice, got %T", slice)
	}
	if len(criteria) == 0 {
		return fmt.Errorf("no sort columns given")
	}
	rows := ptr.Elem()
	elem := indirectType(rows.Type().Elem())
	if elem.Kind() != reflect.Struct {
		return fmt.Errorf("cannot sort %s by column: elements are not structs", rows.Type())
	}

	columns := make([]column, 0, len(criteria))
	for _, c := range criteria {
		idx := columnIndex(elem, c.Field)
		if idx < 0 {
			return fmt.Errorf("unknown sort field %q: valid fields are %s",
				c.Field, strings.Join(FieldNames(elem), ", "))
		}
		columns = append(columns, column{index: idx, desc: c.Descending})
	}

	order := make([]int, rows.Len())
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(i, j int) int {
		a, b := indirect(rows.Index(i)), indirect(rows.Index(j))
		for _, col := range columns {
			c := compareCells(cellAt(a, col.index), cellAt(b, col.index))
			if c == 0 {
				continue
			}
			if col.desc {
				return -c
			}
			return c
		}
		return 0
	})

	sorted := reflect.MakeSlice(rows.Type(), rows.Len(), rows.Len())
	for to, from := range order {
		sorted.Index(to).Set(rows.Index(from))
	}
	reflect.Copy(rows, sorted)
	return nil
}

// FieldNames lists the column names of a struct type in declaration order. t
// may be a reflect.Type, a struct or a pointer to one.
func FieldNames(t interface{}) []string {
	typ, ok := t.(reflect.Type)
	if !ok {
		typ = reflect.TypeOf(t)
	}
	if typ == nil {
		return nil
	}
	typ = indirectType(typ)
	if typ.Kind() != reflect.Struct {
		return nil
	}

	var names []string
	for i := 0; i < typ.NumField(); i++ {
		if name, ok := columnName(typ.Field(i)); ok {
			names = append(names, name)
		}
	}
	return names
}

// columnName returns the json name of an exported field, or its Go name when
// untagged. Fields tagged "-" are not columns.
func columnName(f reflect.StructField) (string, bool) {
	if !f.IsExported() || f.Anonymous {
		return "", false
	}
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	switch name {
	case "-":
		return "", false
	case "":
		return f.Name, true
	}
	return name, true
}

func columnIndex(typ reflect.Type, name string) int {
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		if col, ok := columnName(f); ok && (col == name || f.Name == name) {
			return i
		}
	}
	return -1
}

func indirectType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

func indirect(v reflect.Value) reflect.Value {
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

func cellAt(row reflect.Value, idx int) reflect.Value {
	if !row.IsValid() {
		return row
	}
	return row.Field(idx)
}

// compareCells orders two cells of the same column. Missing rows sort first,
// false sorts before true and lists compare by length.
func compareCells(a, b reflect.Value) int {
	switch {
	case !a.IsValid() && !b.IsValid():
		return 0
	case !a.IsValid():
		return -1
	case !b.IsValid():
		return 1
	}

	switch a.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return cmp.Compare(a.Int(), b.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return cmp.Compare(a.Uint(), b.Uint())
	case reflect.Float32, reflect.Float64:
		return cmp.Compare(a.Float(), b.Float())
	case reflect.String:
		return cmp.Compare(a.String(), b.String())
	case reflect.Bool:
		return cmp.Compare(boolRank(a.Bool()), boolRank(b.Bool()))
	case reflect.Slice, reflect.Array, reflect.Map:
		return cmp.Compare(a.Len(), b.Len())
	}
	return cmp.Compare(fmt.Sprint(a.Interface()), fmt.Sprint(b.Interface()))
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}
