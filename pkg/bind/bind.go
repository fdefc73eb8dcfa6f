// Package bind decodes and validates an HTTP request body into a struct.
package bind

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/shashiranjanraj/orderdesk/config"
	"github.com/shashiranjanraj/orderdesk/pkg/validate"
)

// JSON decodes r.Body into dest, capped at MAX_BODY_BYTES, then validates it.
// It returns (errs, nil) on validation failures and (nil, err) when the body
// is malformed or too large.
func JSON(w http.ResponseWriter, r *http.Request, dest interface{}) (errs map[string]string, err error) {
	if err := Decode(w, r, dest); err != nil {
		return nil, err
	}
	if errs := validate.Struct(dest); validate.HasErrors(errs) {
		return errs, nil
	}
	return nil, nil
}

// Decode only decodes; validation is left to the caller.
func Decode(w http.ResponseWriter, r *http.Request, dest interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, config.Current().MaxBodyBytes)

	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("request body too large (max %d bytes)", maxErr.Limit)
		}
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}
