// Package testutil provides the shared catalog fixture used by henry's package tests.
//
// The catalog has two projects. ecommerce holds the sales model with an orders
// explore (joined to customers and products) and a hidden inventory explore that
// nobody queries. accounting holds the finance model with invoices (queried 42
// times) and payments (never queried). A third model, scratch, has no content.
package testutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"henry/internal/metadata"
	"henry/internal/snapshot"
	"henry/internal/usage"
)

// CapturedAt is the fixed capture time of the catalog snapshot.
var CapturedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func sqlOn(s string) *string { return &s }

func dim(name, description string) metadata.Field {
	return metadata.Field{Name: name, Description: description, Kind: metadata.KindDimension}
}

func measure(name, description string) metadata.Field {
	return metadata.Field{Name: name, Description: description, Kind: metadata.KindMeasure}
}

// Catalog returns a fresh copy of the catalog snapshot.
func Catalog() *snapshot.Snapshot {
	hiddenNote := dim("orders.internal_note", "")
	hiddenNote.Hidden = true

	return &snapshot.Snapshot{
		Version:    snapshot.FormatVersion,
		ID:         "00000000-0000-4000-8000-000000000001",
		CapturedAt: CapturedAt,
		Origin:     "https://bi.example.com:19999",
		Window:     snapshot.Window{TimeframeDays: 90},
		Projects: []metadata.Project{
			{
				Name:               "ecommerce",
				PullRequestMode:    "recommended",
				ValidationRequired: true,
				GitRemoteURL:       "git@example.com:bi/ecommerce.git",
				Files: []metadata.ProjectFile{
					{ID: "sales.model.lkml", Type: metadata.FileTypeModel},
					{ID: "orders.view.lkml", Type: metadata.FileTypeView},
					{ID: "customers.view.lkml", Type: metadata.FileTypeView},
					{ID: "products.view.lkml", Type: metadata.FileTypeView},
					{ID: "README.md", Type: metadata.FileTypeOther},
				},
			},
			{
				Name:            "accounting",
				PullRequestMode: "off",
				Files: []metadata.ProjectFile{
					{ID: "finance.model.lkml", Type: metadata.FileTypeModel},
					{ID: "invoices.view.lkml", Type: metadata.FileTypeView},
					{ID: "payments.view.lkml", Type: metadata.FileTypeView},
				},
			},
		},
		Models: []metadata.Model{
			{
				Name: "sales", Project: "ecommerce", HasContent: true,
				Explores: []metadata.ExploreSummary{{Name: "orders"}, {Name: "inventory", Hidden: true}},
			},
			{
				Name: "finance", Project: "accounting", HasContent: true,
				Explores: []metadata.ExploreSummary{{Name: "invoices"}, {Name: "payments"}},
			},
			{Name: "scratch", Project: "ecommerce"},
		},
		Explores: []metadata.Explore{
			{
				Model:       "sales",
				Name:        "orders",
				Description: "Customer orders",
				Fields: metadata.ExploreFields{
					Dimensions: []metadata.Field{
						dim("orders.id", "Order key"),
						dim("orders.created_date", ""),
						dim("orders.status", ""),
						hiddenNote,
						dim("customers.id", ""),
						dim("customers.email", ""),
						dim("customers.name", ""),
						dim("products.name", ""),
						dim("products.category", ""),
					},
					Measures: []metadata.Field{
						measure("orders.count", ""),
						measure("orders.total_amount", "Sum of order amounts"),
					},
				},
				Joins: []metadata.Join{
					{Name: "customers", SQLOn: sqlOn("${orders.customer_id} = ${customers.id}")},
					{Name: "products", SQLOn: sqlOn("${orders.product_id} = ${products.id}")},
				},
				Scopes: []string{"orders", "customers", "products"},
			},
			{
				Model:  "sales",
				Name:   "inventory",
				Hidden: true,
				Fields: metadata.ExploreFields{
					Dimensions: []metadata.Field{dim("inventory.sku", "")},
					Measures:   []metadata.Field{measure("inventory.quantity", "")},
				},
				Scopes: []string{"inventory"},
			},
			{
				Model: "finance",
				Name:  "invoices",
				Fields: metadata.ExploreFields{
					Dimensions: []metadata.Field{
						dim("invoices.id", ""),
						dim("invoices.due_date", ""),
						dim("invoices.status", ""),
					},
					Measures: []metadata.Field{measure("invoices.amount", "")},
				},
				Scopes: []string{"invoices"},
			},
			{
				Model: "finance",
				Name:  "payments",
				Fields: metadata.ExploreFields{
					Dimensions: []metadata.Field{
						dim("payments.id", ""),
						dim("payments.method", ""),
					},
					Measures: []metadata.Field{measure("payments.amount", "")},
				},
				Scopes: []string{"payments"},
			},
		},
		History: []usage.RawRow{
			{
				Model: "sales", Explore: "orders",
				Fields:   `["orders.total_amount","orders.status"]`,
				Filters:  `{"orders.created_date":"30 days"}`,
				Sorts:    `orders.total_amount desc`,
				RunCount: 10,
			},
			{
				Model: "sales", Explore: "orders",
				Fields:   `["customers.name","orders.count"]`,
				RunCount: 5,
			},
			{
				Model: "finance", Explore: "invoices",
				Fields:   `["invoices.amount"]`,
				Filters:  `{"invoices.status":"paid"}`,
				RunCount: 42,
			},
		},
		GitTests: []snapshot.GitTestRun{
			{Project: "ecommerce", Results: []metadata.GitTestResult{
				{ID: "git_connect", Status: "pass"},
				{ID: "git_push", Status: "pass"},
			}},
			{Project: "accounting", Results: []metadata.GitTestResult{
				{ID: "git_connect", Status: "pass"},
				{ID: "git_push", Status: "fail"},
			}},
		},
	}
}

// CatalogSource serves a fresh catalog snapshot.
func CatalogSource() *snapshot.Source {
	return snapshot.NewSource(Catalog(), "catalog")
}

// FixturePath returns the absolute path of a file under testdata/fixtures/,
// failing the test when it does not exist.
func FixturePath(t *testing.T, name string) string {
	t.Helper()

	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("Failed to get caller information")
	}

	// Navigate from internal/testutil to project root
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(thisFile)))
	path := filepath.Join(projectRoot, "testdata", "fixtures", name)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Fatalf("Fixture not found: %s", path)
	}
	return path
}
