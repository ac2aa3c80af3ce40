package middleware

import (
	"context"
	"net/http"
)

type ManagerStore interface {
	IsManager(ctx context.Context, staffID string) (bool, error)
}

// RequireManager gates routes that carry manager authority: daily close and
// reopen, shortage logging, rate management and audit access.
func RequireManager(managers ManagerStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			staffID, ok := StaffIDFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			isManager, err := managers.IsManager(r.Context(), staffID)
			if err != nil {
				http.Error(w, "unable to verify manager", http.StatusInternalServerError)
				return
			}
			if !isManager {
				http.Error(w, "manager privileges required", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
