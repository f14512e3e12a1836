package db

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func newTenantContext(target string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec)
}

func TestExtractTenantID_Sources(t *testing.T) {
	tests := []struct {
		name   string
		target string
		header string
		jwt    string
		want   string
	}{
		{"header", "/", "clinic_north", "", "clinic_north"},
		{"query", "/?tenant_id=clinic_south", "", "", "clinic_south"},
		{"jwt", "/", "", "jwt_tenant", "jwt_tenant"},
		{"default", "/", "", "", "default"},
		{"jwt wins", "/?tenant_id=query", "header", "jwt", "jwt"},
		{"header beats query", "/?tenant_id=query", "header", "", "header"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTenantContext(tt.target)
			if tt.header != "" {
				c.Request().Header.Set("X-Tenant-ID", tt.header)
			}
			if tt.jwt != "" {
				c.Set("jwt_tenant_id", tt.jwt)
			}
			if got := extractTenantID(c, "default"); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestTenantIDPattern(t *testing.T) {
	valid := []string{"abc", "clinic_1", "tenant_abc_123", "A1B2"}
	for _, v := range valid {
		if !tenantIDPattern.MatchString(v) {
			t.Errorf("expected %q to be valid", v)
		}
	}

	invalid := []string{"", "a-b", "a b", "x;DROP TABLE demographic", "tenant.schema", "a'b"}
	for _, v := range invalid {
		if tenantIDPattern.MatchString(v) {
			t.Errorf("expected %q to be invalid", v)
		}
	}
}

func TestSearchPathSQL(t *testing.T) {
	got := SearchPathSQL("clinic_1")
	want := "SET search_path TO tenant_clinic_1, shared, public"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestTenantMiddleware_RejectsInvalidTenant(t *testing.T) {
	c := newTenantContext("/")
	c.Request().Header.Set("X-Tenant-ID", "bad-tenant")

	called := false
	h := TenantMiddleware(nil, "default")(func(c echo.Context) error {
		called = true
		return nil
	})

	err := h(c)
	if called {
		t.Fatal("handler should not run for an invalid tenant")
	}
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected *echo.HTTPError, got %T", err)
	}
	if he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", he.Code)
	}
}

func TestConnFromContext_Empty(t *testing.T) {
	if conn := ConnFromContext(context.Background()); conn != nil {
		t.Error("expected nil conn from empty context")
	}
}

func TestTenantFromContext(t *testing.T) {
	if tid := TenantFromContext(context.Background()); tid != "" {
		t.Errorf("expected empty tenant, got %q", tid)
	}

	ctx := context.WithValue(context.Background(), TenantIDKey, "clinic_1")
	if tid := TenantFromContext(ctx); tid != "clinic_1" {
		t.Errorf("expected clinic_1, got %q", tid)
	}
}
