package router

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	httpmiddleware "github.com/wolfman30/clinic-scheduling/internal/http/middleware"
	"github.com/wolfman30/clinic-scheduling/internal/tenancy"
	"github.com/wolfman30/clinic-scheduling/pkg/logging"
)

// requireClinicAccess scopes staff requests to the {clinicID} in the path.
// The staff token must list the clinic unless it carries the admin role.
func requireClinicAccess(logger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clinicID := strings.TrimSpace(chi.URLParam(r, "clinicID"))
			if clinicID == "" {
				http.Error(w, `{"error": "missing clinic id"}`, http.StatusBadRequest)
				return
			}
			claims, ok := httpmiddleware.StaffClaimsFromContext(r.Context())
			if !ok {
				http.Error(w, `{"error": "unauthorized"}`, http.StatusUnauthorized)
				return
			}
			if !claims.CanAccess(clinicID) {
				logger.Warn("staff token not scoped to clinic", "clinic_id", clinicID, "subject", claims.Subject)
				http.Error(w, `{"error": "forbidden"}`, http.StatusForbidden)
				return
			}
			ctx := tenancy.WithClinicID(r.Context(), clinicID)
			ctx = tenancy.WithActor(ctx, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
