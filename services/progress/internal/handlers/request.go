package handlers

import (
	"encoding/json"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/example/questor/internal/platform/api"
	"github.com/example/questor/internal/platform/auth"
	"github.com/example/questor/services/progress/internal/certify"
)

const maxRequestBodyBytes = 1 << 20 // 1 MiB

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeJSON reads up to maxRequestBodyBytes from r.Body, decodes JSON into
// dst and validates it. On failure it writes a 400 response and returns false.
func decodeJSON[T any](w http.ResponseWriter, r *http.Request, rid string, dst *T) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)).Decode(dst); err != nil {
		api.BadRequest(w, "INVALID_JSON", "Invalid JSON", rid, nil)
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeServiceError(w, rid, err)
		return false
	}
	return true
}

// learnerFrom reads the authenticated learner or writes a 401.
func learnerFrom(w http.ResponseWriter, r *http.Request, rid string) (certify.Learner, bool) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		api.Unauthorized(w, "AUTH_MISSING", "Missing auth", rid)
		return certify.Learner{}, false
	}
	return certify.Learner{UserID: id.UserID, Name: id.Name()}, true
}
