package shared

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// MaxRequestBodyBytes bounds decoded request bodies.
const MaxRequestBodyBytes = 64 << 10

// Global validator instance for reuse
var validate = validator.New(validator.WithRequiredStructEnabled())

// DecodeJSON decodes the request body into v, rejecting unknown fields and
// bodies larger than MaxRequestBodyBytes.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxRequestBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// ValidateRequest validates the given struct using the validator package.
func ValidateRequest(v any) error {
	if validator, ok := v.(interface{ Validate() error }); ok {
		return validator.Validate()
	}
	return validate.Struct(v)
}
