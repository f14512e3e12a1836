package caseload

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/ehr/caseload/internal/platform/auth"
	"github.com/ehr/caseload/pkg/pagination"
)

type Handler struct {
	svc         *Service
	maxPageSize int
}

func NewHandler(svc *Service, maxPageSize int) *Handler {
	return &Handler{svc: svc, maxPageSize: maxPageSize}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Read endpoints – admin, physician, nurse
	readGroup := api.Group("/caseload", auth.RequireRole("admin", "physician", "nurse"))
	readGroup.GET("/categories", h.ListCategories)
	readGroup.GET("/search/:id", h.Search)
	readGroup.GET("/search/:id/count", h.Count)
	readGroup.GET("/data/:id", h.FetchData)
}

type categoriesResponse struct {
	Categories    []string `json:"categories"`
	SearchQueries []string `json:"search_queries"`
}

type countResponse struct {
	SearchQuery string `json:"search_query"`
	Count       int    `json:"count"`
}

type dataResponse struct {
	DataQuery string   `json:"data_query"`
	Records   []Record `json:"records"`
}

func (h *Handler) ListCategories(c echo.Context) error {
	cat := h.svc.Catalog()
	return c.JSON(http.StatusOK, categoriesResponse{
		Categories:    cat.Categories(),
		SearchQueries: cat.SearchQueries(),
	})
}

// Search returns one page of demographic numbers together with the total
// match count.
func (h *Handler) Search(c echo.Context) error {
	req, pg, err := h.listRequest(c)
	if err != nil {
		return httpError(err)
	}
	ctx := c.Request().Context()

	ids, err := h.svc.ListIdentifiers(ctx, req)
	if err != nil {
		return httpError(err)
	}
	total, err := h.svc.CountMatches(ctx, req.SearchQuery, req.SearchParams)
	if err != nil {
		return httpError(err)
	}

	resp := pagination.NewResponse(ids, total, pg)
	resp.Links = pg.Links(c.Request().URL, total)
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) Count(c echo.Context) error {
	id := c.Param("id")
	n, err := h.svc.CountMatches(c.Request().Context(), id, c.QueryParams()["param"])
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, countResponse{SearchQuery: id, Count: n})
}

func (h *Handler) FetchData(c echo.Context) error {
	id := c.Param("id")
	records, err := h.svc.FetchData(c.Request().Context(), id, CoerceAll(c.QueryParams()["param"]))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, dataResponse{DataQuery: id, Records: records})
}

func (h *Handler) listRequest(c echo.Context) (ListRequest, pagination.Params, error) {
	if raw := c.QueryParam("page"); raw != "" {
		if n, err := strconv.Atoi(raw); err != nil || n < 0 {
			return ListRequest{}, pagination.Params{}, errors.Join(ErrInvalidPage, errors.New("page must be a non-negative integer"))
		}
	}
	if raw := c.QueryParam("page_size"); raw != "" {
		if n, err := strconv.Atoi(raw); err != nil || n <= 0 {
			return ListRequest{}, pagination.Params{}, errors.Join(ErrInvalidPage, errors.New("page_size must be a positive integer"))
		}
	}
	pg := pagination.FromContext(c, h.maxPageSize)

	dir, err := ParseSortDirection(c.QueryParam("dir"))
	if err != nil {
		return ListRequest{}, pg, err
	}
	cat, err := h.svc.Catalog().Category(c.QueryParam("category"))
	if err != nil {
		return ListRequest{}, pg, err
	}

	q := c.QueryParams()
	return ListRequest{
		SearchQuery:  c.Param("id"),
		SearchParams: q["param"],
		SortParams:   q["sort_param"],
		Category:     cat,
		Direction:    dir,
		Page:         pg.Page,
		PageSize:     pg.PageSize,
	}, pg, nil
}

// httpError maps the composer's error classes onto status codes. Catalog and
// driver details stay in the logs.
func httpError(err error) error {
	switch {
	case errors.Is(err, ErrUnknownTemplate), errors.Is(err, ErrUnknownCategory):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case IsInputError(err):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case IsExecutionError(err):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "caseload query failed").SetInternal(err)
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "caseload catalog error").SetInternal(err)
	}
}
