package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/vtlabs/tallysync/pkg/composables"
	"github.com/vtlabs/tallysync/pkg/configuration"
)

// ProvideTenant resolves the (company, division) scope from request headers.
// Requests without a complete tenant scope are rejected before any handler
// or repository runs.
func ProvideTenant() mux.MiddlewareFunc {
	conf := configuration.Use()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenant, err := composables.NewTenant(
				r.Header.Get(conf.CompanyIDHeader),
				r.Header.Get(conf.DivisionIDHeader),
			)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"code":    "TENANT_REQUIRED",
					"message": "company and division headers are required",
				})
				return
			}
			next.ServeHTTP(w, r.WithContext(composables.WithTenant(r.Context(), tenant)))
		})
	}
}
