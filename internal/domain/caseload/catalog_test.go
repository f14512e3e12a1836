package caseload

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

const (
	testSearchAll      = "SELECT demographic_no, last_name, first_name FROM demographic WHERE patient_status = 'AC'"
	testSearchProvider = "SELECT demographic_no, last_name, first_name FROM demographic WHERE provider_no = ? AND patient_status = 'AC'"
	testSortWeight     = "SELECT demographic_no, data_field FROM measurements WHERE type = ?"
	testSortLastAppt   = "SELECT demographic_no, MAX(appointment_date) AS last_appt FROM appointment GROUP BY demographic_no"
)

func testSpec() CatalogSpec {
	return CatalogSpec{
		SearchQueries: map[string]string{
			"search_alldemo":  testSearchAll,
			"search_provider": testSearchProvider,
			"search_narrow":   "SELECT demographic_no FROM demographic",
		},
		SortQueries: map[string]string{
			"cl_sort_measurement": testSortWeight,
			"cl_sort_last_appt":   testSortLastAppt,
		},
		DataQueries: map[string]DataQuerySpec{
			"cl_measurement": {
				Query:   "SELECT data_field, date_observed FROM measurements WHERE demographic_no = ? AND type = ?",
				Columns: []string{"value", "date"},
			},
			"cl_demographic_query": {
				Query:   "SELECT last_name, first_name FROM demographic WHERE demographic_no = ?",
				Columns: []string{"last_name", "first_name"},
			},
		},
		Categories: map[string]CategorySpec{
			"measurement": {Kind: "measurement", Field: "data_field", SortQuery: "cl_sort_measurement"},
			"last_appt":   {Field: "last_appt", SortQuery: "cl_sort_last_appt"},
		},
	}
}

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := NewCatalog(testSpec())
	if err != nil {
		t.Fatalf("build catalog: %v", err)
	}
	return c
}

func TestDefaultCatalog(t *testing.T) {
	c, err := DefaultCatalog()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantCats := []string{"demographic", "age", "sex", "last_appt", "measurement", "measurement_text", "next_appt"}
	if got := c.Categories(); !reflect.DeepEqual(got, wantCats) {
		t.Errorf("categories: got %v, want %v", got, wantCats)
	}
	wantSearches := []string{"search_alldemo", "search_lastname", "search_provider"}
	if got := c.SearchQueries(); !reflect.DeepEqual(got, wantSearches) {
		t.Errorf("search queries: got %v, want %v", got, wantSearches)
	}

	dq, err := c.DataQuery(MeasurementDataQuery)
	if err != nil {
		t.Fatalf("cl_measurement: %v", err)
	}
	if !dq.SingleRow {
		t.Error("cl_measurement must be single row")
	}
	if !reflect.DeepEqual(dq.Columns, []string{"value", "date"}) {
		t.Errorf("unexpected columns %v", dq.Columns)
	}
}

func TestCatalog_Category(t *testing.T) {
	c := testCatalog(t)

	tests := []struct {
		name string
		want Category
	}{
		{"", Demographic{}},
		{"demographic", Demographic{}},
		{"AGE", Age{}},
		{"Sex", Sex{}},
		{"measurement", Measurement{Label: "measurement", Field: "data_field", SortQuery: "cl_sort_measurement"}},
		{"last_appt", Auxiliary{Label: "last_appt", Field: "last_appt", SortQuery: "cl_sort_last_appt"}},
	}
	for _, tt := range tests {
		got, err := c.Category(tt.name)
		if err != nil {
			t.Errorf("Category(%q): unexpected error %v", tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Category(%q) = %#v, want %#v", tt.name, got, tt.want)
		}
	}

	if _, err := c.Category("bmi"); !errors.Is(err, ErrUnknownCategory) {
		t.Errorf("expected ErrUnknownCategory, got %v", err)
	}
}

func TestCatalog_Lookups(t *testing.T) {
	c := testCatalog(t)

	if _, err := c.SearchTemplate("search_nope"); !errors.Is(err, ErrUnknownTemplate) {
		t.Errorf("expected ErrUnknownTemplate, got %v", err)
	}
	if _, err := c.SortQuery("cl_sort_nope"); !errors.Is(err, ErrUnknownTemplate) {
		t.Errorf("expected ErrUnknownTemplate, got %v", err)
	}
	if _, err := c.DataQuery("cl_nope"); !errors.Is(err, ErrUnknownTemplate) {
		t.Errorf("expected ErrUnknownTemplate, got %v", err)
	}

	q, err := c.SearchTemplate("search_provider")
	if err != nil || q != testSearchProvider {
		t.Errorf("unexpected template %q, %v", q, err)
	}
}

func TestCatalog_DataQueryIsCopied(t *testing.T) {
	c := testCatalog(t)

	dq, _ := c.DataQuery("cl_demographic_query")
	dq.Columns[0] = "mutated"

	again, _ := c.DataQuery("cl_demographic_query")
	if again.Columns[0] != "last_name" {
		t.Errorf("catalog was modified through a returned data query: %v", again.Columns)
	}
	if again.SingleRow {
		t.Error("only cl_measurement is forced single row")
	}
}

func TestNewCatalog_ReportsEveryProblem(t *testing.T) {
	spec := CatalogSpec{
		SearchQueries: map[string]string{
			"search_bad": "SELECT last_name FROM demographic WHERE demographic_no = ?",
		},
		SortQueries: map[string]string{
			"cl_sort_bad": "SELECT data_field FROM measurements",
		},
		DataQueries: map[string]DataQuerySpec{
			"cl_empty": {Query: "SELECT 1"},
		},
		Categories: map[string]CategorySpec{
			"Age":       {Field: "x", SortQuery: "cl_sort_bad"},
			"bmi":       {Field: "data_field; DROP TABLE demographic", SortQuery: "cl_sort_bad"},
			"weight":    {Field: "data_field", SortQuery: "cl_sort_missing"},
			"something": {Kind: "histogram", Field: "data_field", SortQuery: "cl_sort_missing"},
		},
	}

	_, err := NewCatalog(spec)
	if err == nil {
		t.Fatal("expected validation errors")
	}
	if !errors.Is(err, ErrMalformedTemplate) {
		t.Errorf("expected ErrMalformedTemplate in %v", err)
	}
	if !errors.Is(err, ErrUnknownTemplate) {
		t.Errorf("expected ErrUnknownTemplate in %v", err)
	}

	var joined interface{ Unwrap() []error }
	if !errors.As(err, &joined) {
		t.Fatalf("expected a joined error, got %T", err)
	}
	// search, sort, data, reserved, bad field, missing sort query x2
	if n := len(joined.Unwrap()); n != 7 {
		t.Errorf("expected 7 problems, got %d: %v", n, err)
	}
}

func TestNewCatalog_UnknownKind(t *testing.T) {
	spec := testSpec()
	spec.Categories["bp"] = CategorySpec{Kind: "histogram", Field: "data_field", SortQuery: "cl_sort_measurement"}

	_, err := NewCatalog(spec)
	if !errors.Is(err, ErrMalformedTemplate) {
		t.Errorf("expected ErrMalformedTemplate, got %v", err)
	}
}

const yamlCatalog = `
search_queries:
  search_all: SELECT demographic_no, last_name, first_name FROM demographic
sort_queries:
  cl_sort_weight: SELECT demographic_no, data_field FROM measurements WHERE type = 'WT'
data_queries:
  cl_demo:
    query: SELECT last_name FROM demographic WHERE demographic_no = ?
    columns: [last_name]
categories:
  weight:
    kind: measurement
    field: data_field
    sort_query: cl_sort_weight
`

const tomlCatalog = `
[search_queries]
search_all = "SELECT demographic_no, last_name, first_name FROM demographic"

[sort_queries]
cl_sort_weight = "SELECT demographic_no, data_field FROM measurements WHERE type = 'WT'"

[data_queries.cl_demo]
query = "SELECT last_name FROM demographic WHERE demographic_no = ?"
columns = ["last_name"]

[categories.weight]
kind = "measurement"
field = "data_field"
sort_query = "cl_sort_weight"
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadCatalogFile(t *testing.T) {
	for _, tt := range []struct {
		name string
		body string
	}{
		{"catalog.yaml", yamlCatalog},
		{"catalog.yml", yamlCatalog},
		{"catalog.toml", tomlCatalog},
	} {
		t.Run(tt.name, func(t *testing.T) {
			c, err := LoadCatalogFile(writeFile(t, tt.name, tt.body))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			cat, err := c.Category("weight")
			if err != nil {
				t.Fatalf("weight category: %v", err)
			}
			if _, ok := cat.(Measurement); !ok {
				t.Errorf("expected Measurement, got %T", cat)
			}
			if _, err := c.DataQuery("cl_demo"); err != nil {
				t.Errorf("cl_demo: %v", err)
			}
		})
	}
}

func TestLoadCatalogFile_Errors(t *testing.T) {
	if c, err := LoadCatalogFile(""); err != nil || c == nil {
		t.Fatalf("empty path should load the built-in catalog: %v", err)
	}
	if _, err := LoadCatalogFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := LoadCatalogFile(writeFile(t, "catalog.json", "{}")); err == nil {
		t.Error("expected error for unsupported extension")
	}
	if _, err := LoadCatalogFile(writeFile(t, "typo.yaml", "search_query:\n  a: b\n")); err == nil {
		t.Error("expected error for unknown yaml key")
	}
	bad := "search_queries:\n  search_bad: SELECT last_name FROM demographic\n"
	if _, err := LoadCatalogFile(writeFile(t, "bad.yaml", bad)); !errors.Is(err, ErrMalformedTemplate) {
		t.Errorf("expected ErrMalformedTemplate, got %v", err)
	}
}
