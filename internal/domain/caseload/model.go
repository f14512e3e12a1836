package caseload

import (
	"fmt"
	"math"
	"strings"
)

// Category selects the projection and ordering appended to a search
// template. The set of variants is closed: Demographic, Age, Sex,
// Measurement and Auxiliary.
type Category interface {
	Name() string
	sealed()
}

// Demographic orders by last name, then first name.
type Demographic struct{}

// Age orders by an age column derived from the birth date components.
type Age struct{}

// Sex orders by the demographic's sex, empty values last.
type Sex struct{}

// Measurement joins SortQuery and orders by Field as a decimal number.
type Measurement struct {
	Label     string
	Field     string
	SortQuery string
}

// Auxiliary joins SortQuery and orders by the raw Field value.
type Auxiliary struct {
	Label     string
	Field     string
	SortQuery string
}

func (Demographic) Name() string   { return "demographic" }
func (Age) Name() string           { return "age" }
func (Sex) Name() string           { return "sex" }
func (m Measurement) Name() string { return m.Label }
func (a Auxiliary) Name() string   { return a.Label }

func (Demographic) sealed() {}
func (Age) sealed()         {}
func (Sex) sealed()         {}
func (Measurement) sealed() {}
func (Auxiliary) sealed()   {}

// joinedField returns the field and sort query of categories that enrich
// the template through a LEFT JOIN.
func joinedField(c Category) (field, sortQuery string, ok bool) {
	switch v := c.(type) {
	case Measurement:
		return v.Field, v.SortQuery, true
	case Auxiliary:
		return v.Field, v.SortQuery, true
	}
	return "", "", false
}

// SortDirection is either ASC or DESC.
type SortDirection string

const (
	Ascending  SortDirection = "ASC"
	Descending SortDirection = "DESC"
)

// ParseSortDirection validates a caller supplied direction. Input is case
// insensitive and an empty string means ascending.
func ParseSortDirection(s string) (SortDirection, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "ASC":
		return Ascending, nil
	case "DESC":
		return Descending, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSortDirection, s)
}

// ListRequest describes one page of a caseload listing.
type ListRequest struct {
	SearchQuery  string
	SearchParams []string
	SortParams   []string
	Category     Category
	Direction    SortDirection
	Page         int
	PageSize     int
}

// Offset is the number of rows skipped before the requested page.
func (r ListRequest) Offset() int {
	return r.Page * r.PageSize
}

func (r ListRequest) validate() error {
	if r.Page < 0 {
		return fmt.Errorf("%w: page %d is negative", ErrInvalidPage, r.Page)
	}
	if r.PageSize <= 0 {
		return fmt.Errorf("%w: page size must be positive, got %d", ErrInvalidPage, r.PageSize)
	}
	if r.Page > math.MaxInt/r.PageSize {
		return fmt.Errorf("%w: page %d of size %d is out of range", ErrInvalidPage, r.Page, r.PageSize)
	}
	if r.Direction != Ascending && r.Direction != Descending {
		return fmt.Errorf("%w: %q", ErrInvalidSortDirection, string(r.Direction))
	}
	return nil
}
