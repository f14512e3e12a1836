package caseload

import (
	"fmt"
	"strings"
)

// Statement is a composed query plus the accounting the binder needs to
// produce exactly one value per placeholder.
type Statement struct {
	SQL              string
	Placeholders     int
	SearchArity      int
	SortArity        int
	Joined           bool
	DirectionRepeats int
	Paginated        bool
}

// Composer turns catalog fragments into executable statements for one SQL
// dialect. Only catalog text and fixed dialect text end up in the SQL;
// caller supplied values are always left to placeholders.
type Composer struct {
	catalog *Catalog
	dialect Dialect
}

func NewComposer(catalog *Catalog, dialect Dialect) *Composer {
	return &Composer{catalog: catalog, dialect: dialect}
}

func (c *Composer) Dialect() Dialect { return c.dialect }

// Resolve returns the filter fragment of a search template after checking
// that params fit its ? markers. Params are not substituted.
func (c *Composer) Resolve(searchQueryID string, params []string) (string, error) {
	q, err := c.catalog.SearchTemplate(searchQueryID)
	if err != nil {
		return "", err
	}
	if n := countMarkers(q); n != len(params) {
		return "", fmt.Errorf("%w: search query %q expects %d parameters, got %d",
			ErrParameterCountMismatch, searchQueryID, n, len(params))
	}
	if err := checkSearchTemplate(searchQueryID, q); err != nil {
		return "", err
	}
	return q, nil
}

// ComposeList builds the paginated, ordered listing query for req.
func (c *Composer) ComposeList(req ListRequest) (*Statement, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	if req.Category == nil {
		req.Category = Demographic{}
	}
	frag, err := c.Resolve(req.SearchQuery, req.SearchParams)
	if err != nil {
		return nil, err
	}
	filter, next := numberMarkers(frag, c.dialect, 1)
	stmt := &Statement{SearchArity: len(req.SearchParams)}

	var (
		from  string
		order []string
	)
	switch cat := req.Category.(type) {
	case Demographic:
		from = wrap(filter)
		order = c.directed(&next, "Z.last_name", "Z.first_name")
		stmt.DirectionRepeats = 2
	case Age:
		spliced, err := c.splice(req.SearchQuery, filter, c.dialect.AgeExpr()+" AS age")
		if err != nil {
			return nil, err
		}
		from = wrap(spliced)
		order = append([]string{"CASE WHEN Z.age IS NULL THEN 1 ELSE 0 END ASC"},
			c.directed(&next, "Z.age", "Z.last_name", "Z.first_name")...)
		stmt.DirectionRepeats = 3
	case Sex:
		spliced, err := c.splice(req.SearchQuery, filter, "sex")
		if err != nil {
			return nil, err
		}
		from = wrap(spliced)
		order = append([]string{"CASE WHEN COALESCE(Z.sex, '') = '' THEN 1 ELSE 0 END ASC"},
			c.directed(&next, "COALESCE(Z.sex, '')", "Z.last_name", "Z.first_name")...)
		stmt.DirectionRepeats = 3
	case Measurement:
		from, next, err = c.join(filter, cat.Field, cat.SortQuery, req.SortParams, next)
		if err != nil {
			return nil, err
		}
		order = append([]string{"CASE WHEN X." + cat.Field + " IS NULL THEN 1 ELSE 0 END ASC"},
			c.directed(&next, c.dialect.DecimalExpr("X."+cat.Field), "Y.last_name", "Y.first_name")...)
		stmt.Joined, stmt.SortArity, stmt.DirectionRepeats = true, len(req.SortParams), 3
	case Auxiliary:
		from, next, err = c.join(filter, cat.Field, cat.SortQuery, req.SortParams, next)
		if err != nil {
			return nil, err
		}
		order = append([]string{"CASE WHEN X." + cat.Field + " IS NULL THEN 1 ELSE 0 END ASC"},
			c.directed(&next, "X."+cat.Field, "Y.last_name", "Y.first_name")...)
		stmt.Joined, stmt.SortArity, stmt.DirectionRepeats = true, len(req.SortParams), 3
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownCategory, req.Category)
	}

	offset, limit := c.dialect.Placeholder(next), c.dialect.Placeholder(next+1)
	next += 2
	stmt.Paginated = true
	stmt.SQL = from + " ORDER BY " + strings.Join(order, ", ") + " " + c.dialect.Paginate(offset, limit)
	stmt.Placeholders = next - 1
	return stmt, nil
}

// ComposeCount wraps a search template into a row count.
func (c *Composer) ComposeCount(searchQueryID string, params []string) (*Statement, error) {
	frag, err := c.Resolve(searchQueryID, params)
	if err != nil {
		return nil, err
	}
	filter, next := numberMarkers(frag, c.dialect, 1)
	return &Statement{
		SQL:          "SELECT count(1) AS count FROM (" + filter + ") AS X",
		Placeholders: next - 1,
		SearchArity:  len(params),
	}, nil
}

// ComposeData prepares a named data query for n positional parameters.
func (c *Composer) ComposeData(dataQueryID string, n int) (*Statement, DataQuery, error) {
	dq, err := c.catalog.DataQuery(dataQueryID)
	if err != nil {
		return nil, DataQuery{}, err
	}
	if m := countMarkers(dq.SQL); m != n {
		return nil, DataQuery{}, fmt.Errorf("%w: data query %q expects %d parameters, got %d",
			ErrParameterCountMismatch, dataQueryID, m, n)
	}
	sql, next := numberMarkers(dq.SQL, c.dialect, 1)
	return &Statement{SQL: sql, Placeholders: next - 1, SearchArity: n}, dq, nil
}

// directed renders one ascending and one descending term per expression,
// each switched on by its own direction placeholder.
func (c *Composer) directed(next *int, exprs ...string) []string {
	terms := make([]string, 0, len(exprs))
	for _, e := range exprs {
		p := c.dialect.Placeholder(*next)
		*next++
		terms = append(terms, fmt.Sprintf(
			"CASE WHEN %[1]s = 'ASC' THEN %[2]s END ASC, CASE WHEN %[1]s = 'DESC' THEN %[2]s END DESC", p, e))
	}
	return terms
}

// splice inserts column right after the demographic_no projection column.
func (c *Composer) splice(id, filter, column string) (string, error) {
	col, ok := demographicColumn(filter)
	if !ok {
		return "", fmt.Errorf("%w: search query %q does not project %s", ErrMalformedTemplate, id, demographicNo)
	}
	at, ok := splicePoint(filter, col)
	if !ok {
		return "", fmt.Errorf("%w: search query %q has no projection column after %s", ErrProjectionSplice, id, demographicNo)
	}
	return filter[:at] + ", " + column + " " + filter[at:], nil
}

func (c *Composer) join(filter, field, sortQueryID string, sortParams []string, next int) (string, int, error) {
	aux, err := c.catalog.SortQuery(sortQueryID)
	if err != nil {
		return "", next, err
	}
	if n := countMarkers(aux); n != len(sortParams) {
		return "", next, fmt.Errorf("%w: sort query %q expects %d parameters, got %d",
			ErrParameterCountMismatch, sortQueryID, n, len(sortParams))
	}
	aux, next = numberMarkers(aux, c.dialect, next)
	return "SELECT Y.demographic_no, Y.last_name, Y.first_name, X." + field +
		" FROM (" + filter + ") AS Y LEFT JOIN (" + aux + ") AS X ON Y.demographic_no = X.demographic_no", next, nil
}

func wrap(filter string) string {
	return "SELECT Z.* FROM (" + filter + ") AS Z"
}
