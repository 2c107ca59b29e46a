// Package httputil holds the JSON response and request helpers shared by
// HTTP handlers.
package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"

	"courtside/pkg/fault"
)

// Error codes written in the "error" field of error responses.
const (
	CodeBadRequest = "bad_request"
	CodeNotFound   = "not_found"
	CodeInternal   = "internal_error"
)

const maxBodyBytes = 1 << 20

// WriteJSON writes v as a JSON body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates err into a JSON error envelope. Validation faults
// become 400 with their message; anything else is a 500 whose details stay
// server-side.
func WriteError(w http.ResponseWriter, err error) {
	if fault.IsValidation(err) {
		WriteJSON(w, http.StatusBadRequest, map[string]string{
			"error":             CodeBadRequest,
			"error_description": fault.MessageOf(err),
		})
		return
	}
	WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": CodeInternal})
}

// Decode reads a JSON request body into T. Unknown fields and trailing data
// are rejected as validation faults.
func Decode[T any](w http.ResponseWriter, r *http.Request) (T, error) {
	var v T
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		return v, fault.Validationf("invalid request body: %v", err)
	}
	if dec.More() {
		return v, fault.Validation("invalid request body: trailing data")
	}
	return v, nil
}

// BadRequest writes a 400 with description.
func BadRequest(w http.ResponseWriter, format string, args ...any) {
	WriteError(w, fault.Validation(fmt.Sprintf(format, args...)))
}
