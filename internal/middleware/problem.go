package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/Strob0t/mfi-api/internal/domain"
)

// TypeAuthorization is the problem type of authentication and permission failures.
const TypeAuthorization = "AUTHORIZATION_ERROR"

// WriteProblem writes a domain.Problem with the given status.
func WriteProblem(w http.ResponseWriter, status int, typ, message string, fields []domain.FieldError) {
	if fields == nil {
		fields = []domain.FieldError{}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(domain.Problem{
		Type:           typ,
		Message:        message,
		Status:         status,
		SpecificErrors: fields,
	})
}
