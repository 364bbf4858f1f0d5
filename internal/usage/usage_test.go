package usage

import (
	"bytes"
	"log/slog"
	"reflect"
	"strings"
	"testing"

	"henry/internal/errors"
	"henry/internal/identifier"
	"henry/internal/slogutil"
)

func fid(t *testing.T, s string) identifier.FieldID {
	t.Helper()
	id, err := identifier.Parse(s)
	if err != nil {
		t.Fatalf("Parse(%q): %v", s, err)
	}
	return id
}

func TestExtractTokens(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"empty", "", nil},
		{"json list", `["orders.amount","users.name"]`, []string{"orders.amount", "users.name"}},
		{"filters", `{"orders.created_date":"7 days","users.state":"CA"}`, []string{"orders.created_date", "users.state"}},
		{"sort clause", "orders.amount desc 0", []string{"orders.amount"}},
		{"deeper path keeps first two segments", "a.b.c", []string{"a.b"}},
		{"duplicates kept", "orders.id orders.id", []string{"orders.id", "orders.id"}},
		{"no dot", "amount", nil},
		{"null literal", "null", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractTokens(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractTokens(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestAggregate_SumsRunCounts(t *testing.T) {
	rows := []RawRow{
		{Model: "sales", Explore: "orders", Fields: `["orders.amount"]`, RunCount: 5},
		{Model: "sales", Explore: "orders", Fields: `["orders.amount"]`, RunCount: 3},
	}

	counts, err := Aggregate(rows)
	if err != nil {
		t.Fatal(err)
	}
	if got := counts.Get(fid(t, "sales.orders.orders.amount")); got != 8 {
		t.Errorf("count = %d, want 8", got)
	}
}

func TestAggregate_CountsEachOccurrence(t *testing.T) {
	rows := []RawRow{{
		Model:    "sales",
		Explore:  "orders",
		Fields:   `["orders.amount","users.name"]`,
		Filters:  `{"orders.amount":">100"}`,
		Sorts:    "orders.amount desc",
		RunCount: 4,
	}}

	counts, err := Aggregate(rows)
	if err != nil {
		t.Fatal(err)
	}
	if got := counts.Get(fid(t, "sales.orders.orders.amount")); got != 12 {
		t.Errorf("orders.amount = %d, want 12 (three blobs x 4)", got)
	}
	if got := counts.Get(fid(t, "sales.orders.users.name")); got != 4 {
		t.Errorf("users.name = %d, want 4", got)
	}
	if got := counts.Total(); got != 16 {
		t.Errorf("Total() = %d, want 16", got)
	}
}

func TestAggregate_Malformed(t *testing.T) {
	tests := []struct {
		name string
		row  RawRow
	}{
		{"negative run count", RawRow{Model: "sales", Explore: "orders", Fields: "orders.id", RunCount: -1}},
		{"missing model", RawRow{Explore: "orders", Fields: "orders.id", RunCount: 1}},
		{"missing explore", RawRow{Model: "sales", Fields: "orders.id", RunCount: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Aggregate([]RawRow{tt.row})
			if !errors.Is(err, errors.MalformedIdentifier) {
				t.Errorf("Aggregate() error = %v, want MALFORMED_IDENTIFIER", err)
			}
		})
	}
}

func TestAggregate_EmptyBlobs(t *testing.T) {
	counts, err := Aggregate([]RawRow{{Model: "sales", Explore: "orders", RunCount: 10}})
	if err != nil {
		t.Fatal(err)
	}
	if len(counts) != 0 {
		t.Errorf("Aggregate() = %v, want no counts", counts)
	}
}

func TestCounts_Views(t *testing.T) {
	counts, err := Aggregate([]RawRow{
		{Model: "sales", Explore: "orders", Fields: "orders.amount users.name", RunCount: 1},
		{Model: "sales", Explore: "returns", Fields: "returns.reason", RunCount: 2},
	})
	if err != nil {
		t.Fatal(err)
	}

	if got := counts.Views().Sorted(); !reflect.DeepEqual(got, []string{"orders", "returns", "users"}) {
		t.Errorf("Views() = %v", got)
	}

	scoped := counts.ForExplore("sales", "orders")
	if got := scoped.Views().Sorted(); !reflect.DeepEqual(got, []string{"orders", "users"}) {
		t.Errorf("ForExplore().Views() = %v", got)
	}

	keys := counts.Keys()
	if len(keys) != 3 || keys[0].String() != "sales.orders.orders.amount" {
		t.Errorf("Keys() = %v", keys)
	}
}

func TestCounts_Stripped(t *testing.T) {
	counts, err := Aggregate([]RawRow{
		{Model: "sales", Explore: "orders", Fields: "users.name", RunCount: 2},
		{Model: "sales", Explore: "customers", Fields: "users.name", RunCount: 3},
	})
	if err != nil {
		t.Fatal(err)
	}

	stripped := counts.Stripped()
	if got := stripped[identifier.ViewField{View: "users", Field: "name"}]; got != 5 {
		t.Errorf("Stripped()[users.name] = %d, want 5", got)
	}
}

func TestAggregateBy(t *testing.T) {
	rows := []RawRow{
		{Model: "finance", Explore: "invoices", RunCount: 40},
		{Model: "finance", Explore: "invoices", RunCount: 2},
		{Model: "sales", Explore: "orders", RunCount: 7},
	}

	explores, err := AggregateBy(rows, KeyExplore, slogutil.NewDiscardLogger())
	if err != nil {
		t.Fatal(err)
	}
	if explores.Get("invoices") != 42 || explores.Get("payments") != 0 {
		t.Errorf("explore lookup = %v", explores)
	}

	models, err := AggregateBy(rows, KeyModel, slogutil.NewDiscardLogger())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(models.Keys(), []string{"finance", "sales"}) {
		t.Errorf("Keys() = %v", models.Keys())
	}
	if models.Get("finance") != 42 {
		t.Errorf("finance = %d, want 42", models.Get("finance"))
	}

	if _, err := AggregateBy([]RawRow{{Model: "sales", RunCount: -3}}, KeyModel, slogutil.NewDiscardLogger()); !errors.Is(err, errors.MalformedIdentifier) {
		t.Errorf("negative run count error = %v, want MALFORMED_IDENTIFIER", err)
	}
}

func TestAggregateBy_BlankKeys(t *testing.T) {
	rows := []RawRow{
		{Model: "finance", Explore: "invoices", RunCount: 42},
		{Model: "", Explore: "", RunCount: 7},
		{Model: "  ", Explore: "payments", RunCount: 3},
		{Model: "finance", Explore: "", RunCount: 5},
	}

	tests := []struct {
		key      Key
		want     Lookup
		wantWarn string
	}{
		{KeyModel, Lookup{"finance": 47}, "runs=10"},
		{KeyExplore, Lookup{"invoices": 42, "payments": 3}, "runs=12"},
	}
	for _, tt := range tests {
		t.Run(tt.key.String(), func(t *testing.T) {
			var buf bytes.Buffer
			got, err := AggregateBy(rows, tt.key, slogutil.NewLogger(&buf, slog.LevelWarn))
			if err != nil {
				t.Fatalf("AggregateBy() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("AggregateBy() = %v, want %v", got, tt.want)
			}
			logged := buf.String()
			if !strings.Contains(logged, "without a "+tt.key.String()+" name") || !strings.Contains(logged, "rows=2") || !strings.Contains(logged, tt.wantWarn) {
				t.Errorf("warning = %q", logged)
			}
		})
	}

	var buf bytes.Buffer
	if _, err := AggregateBy(rows[:1], KeyModel, slogutil.NewLogger(&buf, slog.LevelWarn)); err != nil || buf.Len() != 0 {
		t.Errorf("clean rows: err = %v, log = %q", err, buf.String())
	}
}

func TestAggregateBy_DottedKey(t *testing.T) {
	rows := []RawRow{{Model: "sales.orders", Explore: "orders", RunCount: 1}}
	if _, err := AggregateBy(rows, KeyModel, slogutil.NewDiscardLogger()); !errors.Is(err, errors.MalformedIdentifier) {
		t.Errorf("AggregateBy() error = %v, want MALFORMED_IDENTIFIER", err)
	}
}

func TestQuery(t *testing.T) {
	q := Query{
		Granularity:   GranularityFields,
		Models:        []string{"sales"},
		Views:         []string{"orders", "users"},
		TimeframeDays: 90,
		MinRunCount:   2,
	}
	if err := q.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}

	tests := []struct {
		row  RawRow
		want bool
	}{
		{RawRow{Model: "sales", Explore: "orders", RunCount: 2}, true},
		{RawRow{Model: "sales", Explore: "orders", RunCount: 1}, false},
		{RawRow{Model: "finance", Explore: "orders", RunCount: 5}, false},
		{RawRow{Model: "sales", Explore: "returns", RunCount: 5}, false},
	}
	for _, tt := range tests {
		if got := q.Matches(tt.row); got != tt.want {
			t.Errorf("Matches(%+v) = %v, want %v", tt.row, got, tt.want)
		}
	}

	bad := []Query{
		{Granularity: "views", TimeframeDays: 1},
		{Granularity: GranularityModels, TimeframeDays: 0},
		{Granularity: GranularityModels, TimeframeDays: 1, MinRunCount: -1},
	}
	for _, b := range bad {
		if err := b.Validate(); !errors.Is(err, errors.ScopeInvalid) {
			t.Errorf("Validate(%v) = %v, want SCOPE_INVALID", b, err)
		}
	}
}

func TestQuery_Project(t *testing.T) {
	row := RawRow{Model: "sales", Explore: "orders", Fields: "orders.id", RunCount: 3}

	if got := (Query{Granularity: GranularityModels}).Project(row); got != (RawRow{Model: "sales", RunCount: 3}) {
		t.Errorf("models projection = %+v", got)
	}
	if got := (Query{Granularity: GranularityExplores}).Project(row); got.Fields != "" || got.Explore != "orders" {
		t.Errorf("explores projection = %+v", got)
	}
	if got := (Query{Granularity: GranularityFields}).Project(row); got != row {
		t.Errorf("fields projection = %+v", got)
	}
}
