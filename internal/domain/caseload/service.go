package caseload

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/ehr/caseload/internal/platform/telemetry"
)

// Service is the caseload query composer: it resolves templates, composes
// and binds statements, executes them and projects the rows.
type Service struct {
	catalog  *Catalog
	composer *Composer
	exec     Executor
	logger   zerolog.Logger
	metrics  *telemetry.Metrics
}

func NewService(catalog *Catalog, dialect Dialect, exec Executor, logger zerolog.Logger, metrics *telemetry.Metrics) *Service {
	return &Service{
		catalog:  catalog,
		composer: NewComposer(catalog, dialect),
		exec:     exec,
		logger:   logger.With().Str("component", "caseload").Logger(),
		metrics:  metrics,
	}
}

func (s *Service) Catalog() *Catalog { return s.catalog }

// PrepareList composes and binds the listing statement without executing it.
func (s *Service) PrepareList(req ListRequest) (*Statement, []any, error) {
	if req.Category == nil {
		req.Category = Demographic{}
	}
	if req.Direction == "" {
		req.Direction = Ascending
	}
	stmt, err := s.composer.ComposeList(req)
	if err != nil {
		return nil, nil, err
	}
	args, err := Bind(stmt, req.SearchParams, req.SortParams, req.Direction, req.Page, req.PageSize)
	if err != nil {
		return nil, nil, err
	}
	return stmt, args, nil
}

// ListIdentifiers returns one page of demographic numbers matching the
// search template, ordered by the requested category.
func (s *Service) ListIdentifiers(ctx context.Context, req ListRequest) (ids []int, err error) {
	defer s.observe("list", time.Now(), &err)

	stmt, args, err := s.PrepareList(req)
	if err != nil {
		return nil, err
	}
	s.logger.Debug().
		Str("search_query", req.SearchQuery).
		Str("sql", stmt.SQL).
		Int("params", len(args)).
		Msg("composed caseload listing")

	rows, err := s.exec.Query(ctx, stmt.SQL, args...)
	if err != nil {
		return nil, executionError("list", err)
	}
	defer rows.Close()

	ids = make([]int, 0, req.PageSize)
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, executionError("list", err)
		}
		if len(vals) == 0 {
			return nil, fmt.Errorf("%w: listing row has no columns", ErrProjectionSplice)
		}
		id, err := asInt(vals[0])
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrProjectionSplice, demographicNo, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, executionError("list", err)
	}
	return ids, nil
}

// CountMatches returns the number of rows the search template matches.
func (s *Service) CountMatches(ctx context.Context, searchQueryID string, searchParams []string) (n int, err error) {
	defer s.observe("count", time.Now(), &err)

	stmt, err := s.composer.ComposeCount(searchQueryID, searchParams)
	if err != nil {
		return 0, err
	}
	args, err := Bind(stmt, searchParams, nil, "", 0, 0)
	if err != nil {
		return 0, err
	}
	s.logger.Debug().Str("search_query", searchQueryID).Str("sql", stmt.SQL).Msg("composed caseload count")

	rows, err := s.exec.Query(ctx, stmt.SQL, args...)
	if err != nil {
		return 0, executionError("count", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return 0, executionError("count", err)
		}
		return 0, executionError("count", errors.New("no row returned"))
	}
	vals, err := rows.Values()
	if err != nil {
		return 0, executionError("count", err)
	}
	if len(vals) == 0 {
		return 0, executionError("count", errors.New("no column returned"))
	}
	n, err = asInt(vals[0])
	if err != nil {
		return 0, executionError("count", err)
	}
	return n, nil
}

// FetchData runs a named data query and labels each row with the query's
// column names. Single row queries stop after the first row.
func (s *Service) FetchData(ctx context.Context, dataQueryID string, params []any) (records []Record, err error) {
	defer s.observe("fetch", time.Now(), &err)

	stmt, dq, err := s.composer.ComposeData(dataQueryID, len(params))
	if err != nil {
		return nil, err
	}
	s.logger.Debug().Str("data_query", dataQueryID).Str("sql", stmt.SQL).Msg("composed caseload data query")

	rows, err := s.exec.Query(ctx, stmt.SQL, params...)
	if err != nil {
		return nil, executionError("fetch", err)
	}
	defer rows.Close()

	records = []Record{}
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, executionError("fetch", err)
		}
		rec, err := NewRecord(dq.Columns, vals)
		if err != nil {
			return nil, fmt.Errorf("data query %q: %w", dataQueryID, err)
		}
		records = append(records, rec)
		if dq.SingleRow {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, executionError("fetch", err)
	}
	return records, nil
}

func (s *Service) observe(op string, start time.Time, errp *error) {
	err := *errp
	outcome := "ok"
	switch {
	case err == nil:
	case IsExecutionError(err):
		outcome = "execution_error"
		s.logger.Error().Err(err).Str("operation", op).Msg("caseload query failed")
	case IsInputError(err):
		outcome = "input_error"
	default:
		outcome = "config_error"
		s.logger.Warn().Err(err).Str("operation", op).Msg("caseload catalog problem")
	}
	s.metrics.ObserveQuery(op, outcome, time.Since(start))
}

func asInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int8:
		return int(n), nil
	case int16:
		return int(n), nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case uint8:
		return int(n), nil
	case uint16:
		return int(n), nil
	case uint32:
		return int(n), nil
	case uint64:
		if n > math.MaxInt {
			return 0, fmt.Errorf("value %d overflows int", n)
		}
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("value %v is not integral", n)
		}
		return int(n), nil
	case string:
		return strconv.Atoi(n)
	case []byte:
		return strconv.Atoi(string(n))
	case nil:
		return 0, errors.New("value is NULL")
	}
	return 0, fmt.Errorf("unsupported value type %T", v)
}
