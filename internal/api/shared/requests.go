package shared

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// MaxJSONBodyBytes bounds JSON request bodies.
const MaxJSONBodyBytes = 1 << 20

// Global validator instance for reuse
var validate = validator.New(validator.WithRequiredStructEnabled())

// DecodeJSON decodes the request body into v. Unknown fields are rejected.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxJSONBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// ValidateRequest validates v with its own Validate method when it has
// one, and with the struct tags otherwise.
func ValidateRequest(v any) error {
	if validator, ok := v.(interface{ Validate() error }); ok {
		return validator.Validate()
	}
	return validate.Struct(v)
}
