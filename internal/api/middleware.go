package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/nealali/agentic-triage-copilot/internal/utils"
)

// CorrelationHeader carries the request correlation ID. Audit events written
// during the request reuse it, so callers can trace a mutation end to end.
const CorrelationHeader = "X-Correlation-ID"

// correlationMiddleware adopts the caller's correlation ID when it is a valid
// UUID, otherwise mints one. The ID is echoed on the response.
func correlationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.Header.Get(CorrelationHeader))
		if err != nil {
			id = uuid.New()
		}
		w.Header().Set(CorrelationHeader, id.String())
		next.ServeHTTP(w, r.WithContext(utils.WithCorrelationID(r.Context(), id)))
	})
}
