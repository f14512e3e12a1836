package caseload

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// MeasurementDataQuery is the data query that only ever yields the most
// recent measurement, so at most one row is read from it.
const MeasurementDataQuery = "cl_measurement"

var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// DataQuery is a named query whose rows are labelled with Columns.
type DataQuery struct {
	ID        string
	SQL       string
	Columns   []string
	SingleRow bool
}

// CatalogSpec is the file representation of a catalog.
type CatalogSpec struct {
	SearchQueries map[string]string        `yaml:"search_queries" toml:"search_queries"`
	SortQueries   map[string]string        `yaml:"sort_queries" toml:"sort_queries"`
	DataQueries   map[string]DataQuerySpec `yaml:"data_queries" toml:"data_queries"`
	Categories    map[string]CategorySpec  `yaml:"categories" toml:"categories"`
}

type DataQuerySpec struct {
	Query     string   `yaml:"query" toml:"query"`
	Columns   []string `yaml:"columns" toml:"columns"`
	SingleRow bool     `yaml:"single_row" toml:"single_row"`
}

// CategorySpec declares a joined sort category. Kind is "measurement"
// (decimal ordering) or "auxiliary" (raw ordering).
type CategorySpec struct {
	Kind      string `yaml:"kind" toml:"kind"`
	Field     string `yaml:"field" toml:"field"`
	SortQuery string `yaml:"sort_query" toml:"sort_query"`
}

// Catalog is the read-only set of query fragments the composer may use. It is
// built once by NewCatalog and never modified afterwards, so it can be shared
// between concurrent requests without locking.
type Catalog struct {
	searches   map[string]string
	sorts      map[string]string
	data       map[string]DataQuery
	categories map[string]Category
}

var builtinCategories = []Category{Demographic{}, Age{}, Sex{}}

// NewCatalog validates spec and returns the immutable catalog. Every problem
// found is reported, joined into a single error.
func NewCatalog(spec CatalogSpec) (*Catalog, error) {
	c := &Catalog{
		searches:   make(map[string]string, len(spec.SearchQueries)),
		sorts:      make(map[string]string, len(spec.SortQueries)),
		data:       make(map[string]DataQuery, len(spec.DataQueries)),
		categories: make(map[string]Category, len(spec.Categories)+len(builtinCategories)),
	}
	var errs []error

	for id, q := range spec.SearchQueries {
		if err := checkSearchTemplate(id, q); err != nil {
			errs = append(errs, err)
			continue
		}
		c.searches[id] = q
	}

	for id, q := range spec.SortQueries {
		if !strings.Contains(strings.ToLower(q), demographicNo) {
			errs = append(errs, fmt.Errorf("%w: sort query %q does not project %s", ErrMalformedTemplate, id, demographicNo))
			continue
		}
		c.sorts[id] = q
	}

	for id, d := range spec.DataQueries {
		if strings.TrimSpace(d.Query) == "" || len(d.Columns) == 0 {
			errs = append(errs, fmt.Errorf("%w: data query %q needs a query and columns", ErrMalformedTemplate, id))
			continue
		}
		c.data[id] = DataQuery{
			ID:        id,
			SQL:       d.Query,
			Columns:   append([]string(nil), d.Columns...),
			SingleRow: d.SingleRow || id == MeasurementDataQuery,
		}
	}

	for _, b := range builtinCategories {
		c.categories[b.Name()] = b
	}
	for name, cs := range spec.Categories {
		key := strings.ToLower(name)
		if _, taken := c.categories[key]; taken {
			errs = append(errs, fmt.Errorf("%w: category %q is reserved", ErrMalformedTemplate, name))
			continue
		}
		if !fieldPattern.MatchString(cs.Field) {
			errs = append(errs, fmt.Errorf("%w: category %q has invalid field %q", ErrMalformedTemplate, name, cs.Field))
			continue
		}
		if _, ok := c.sorts[cs.SortQuery]; !ok {
			errs = append(errs, fmt.Errorf("%w: category %q references sort query %q", ErrUnknownTemplate, name, cs.SortQuery))
			continue
		}
		switch strings.ToLower(cs.Kind) {
		case "measurement":
			c.categories[key] = Measurement{Label: key, Field: cs.Field, SortQuery: cs.SortQuery}
		case "auxiliary", "":
			c.categories[key] = Auxiliary{Label: key, Field: cs.Field, SortQuery: cs.SortQuery}
		default:
			errs = append(errs, fmt.Errorf("%w: category %q has unknown kind %q", ErrMalformedTemplate, name, cs.Kind))
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return c, nil
}

func checkSearchTemplate(id, q string) error {
	if _, ok := demographicColumn(q); !ok {
		return fmt.Errorf("%w: search query %q does not project %s", ErrMalformedTemplate, id, demographicNo)
	}
	return nil
}

// SearchTemplate returns the filter fragment registered under id.
func (c *Catalog) SearchTemplate(id string) (string, error) {
	q, ok := c.searches[id]
	if !ok {
		return "", fmt.Errorf("%w: search query %q", ErrUnknownTemplate, id)
	}
	return q, nil
}

// SortQuery returns the auxiliary sort fragment registered under id.
func (c *Catalog) SortQuery(id string) (string, error) {
	q, ok := c.sorts[id]
	if !ok {
		return "", fmt.Errorf("%w: sort query %q", ErrUnknownTemplate, id)
	}
	return q, nil
}

// DataQuery returns a copy of the data query registered under id.
func (c *Catalog) DataQuery(id string) (DataQuery, error) {
	d, ok := c.data[id]
	if !ok {
		return DataQuery{}, fmt.Errorf("%w: data query %q", ErrUnknownTemplate, id)
	}
	d.Columns = append([]string(nil), d.Columns...)
	return d, nil
}

// Category looks a category up by name. The empty name selects Demographic.
func (c *Catalog) Category(name string) (Category, error) {
	if name == "" {
		return Demographic{}, nil
	}
	cat, ok := c.categories[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, name)
	}
	return cat, nil
}

// Categories lists the built-in categories followed by the catalog ones in
// name order.
func (c *Catalog) Categories() []string {
	names := make([]string, 0, len(c.categories))
	for _, b := range builtinCategories {
		names = append(names, b.Name())
	}
	custom := make([]string, 0, len(c.categories)-len(builtinCategories))
	for name, cat := range c.categories {
		if _, _, ok := joinedField(cat); ok {
			custom = append(custom, name)
		}
	}
	sort.Strings(custom)
	return append(names, custom...)
}

// SearchQueries lists the registered search template ids in order.
func (c *Catalog) SearchQueries() []string {
	ids := make([]string, 0, len(c.searches))
	for id := range c.searches {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
