package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	httpmiddleware "github.com/wolfman30/clinic-scheduling/internal/http/middleware"
	"github.com/wolfman30/clinic-scheduling/internal/tenancy"
	"github.com/wolfman30/clinic-scheduling/pkg/logging"
)

func scopedRouter(t *testing.T, withAuth bool) http.Handler {
	t.Helper()
	r := chi.NewRouter()
	r.Route("/clinics/{clinicID}", func(r chi.Router) {
		if withAuth {
			r.Use(httpmiddleware.StaffJWT(testSecret))
		}
		r.Use(requireClinicAccess(logging.Default()))
		r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
			clinicID, ok := tenancy.ClinicIDFromContext(r.Context())
			if !ok || clinicID != "clinic-abc" {
				t.Fatalf("expected clinic id propagated, got %s / %v", clinicID, ok)
			}
			if actor := tenancy.ActorFromContext(r.Context()); actor != "staff-1" {
				t.Fatalf("expected actor staff-1, got %q", actor)
			}
			w.WriteHeader(http.StatusTeapot)
		})
	})
	return r
}

func pingAs(t *testing.T, clinics ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/clinics/clinic-abc/ping", nil)
	req.Header.Set("Authorization", "Bearer "+staffToken(t, "", clinics...))
	rr := httptest.NewRecorder()
	scopedRouter(t, true).ServeHTTP(rr, req)
	return rr
}

func TestRequireClinicAccessPassesThrough(t *testing.T) {
	if rr := pingAs(t, "clinic-abc"); rr.Code != http.StatusTeapot {
		t.Fatalf("expected downstream status, got %d", rr.Code)
	}
}

func TestRequireClinicAccessWrongClinic(t *testing.T) {
	if rr := pingAs(t, "clinic-other"); rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for another clinic, got %d", rr.Code)
	}
}

func TestRequireClinicAccessWithoutClaims(t *testing.T) {
	rr := httptest.NewRecorder()
	scopedRouter(t, false).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/clinics/clinic-abc/ping", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without claims, got %d", rr.Code)
	}
}
