package response

import (
	"encoding/json"
	"net/http"
)

// Envelope is the standard API response structure.
type Envelope struct {
	Error   bool          `json:"error"`
	Message string        `json:"message"`
	Data    interface{}   `json:"data,omitempty"`
	Details []ErrorDetail `json:"details,omitempty"`
}

// ErrorDetail provides field-level error information.
type ErrorDetail struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	return json.NewEncoder(w).Encode(data)
}

// Success writes a 200 OK response.
func Success(w http.ResponseWriter, message string, data interface{}) error {
	return WriteJSON(w, http.StatusOK, Envelope{
		Message: message,
		Data:    data,
	})
}

// Created writes a 201 Created response.
func Created(w http.ResponseWriter, message string, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, Envelope{
		Message: message,
		Data:    data,
	})
}

// BadRequest writes a 400 Bad Request response.
func BadRequest(w http.ResponseWriter, message string, details ...ErrorDetail) error {
	return WriteJSON(w, http.StatusBadRequest, Envelope{
		Error:   true,
		Message: message,
		Details: details,
	})
}

// Unauthorized writes a 401 Unauthorized response.
func Unauthorized(w http.ResponseWriter, message string) error {
	return WriteJSON(w, http.StatusUnauthorized, Envelope{
		Error:   true,
		Message: message,
	})
}

// Forbidden writes a 403 Forbidden response.
func Forbidden(w http.ResponseWriter, message string) error {
	return WriteJSON(w, http.StatusForbidden, Envelope{
		Error:   true,
		Message: message,
	})
}

// NotFound writes a 404 Not Found response.
func NotFound(w http.ResponseWriter, message string) error {
	return WriteJSON(w, http.StatusNotFound, Envelope{
		Error:   true,
		Message: message,
	})
}

// InternalServerError writes a 500 Internal Server Error response.
func InternalServerError(w http.ResponseWriter, message string) error {
	return WriteJSON(w, http.StatusInternalServerError, Envelope{
		Error:   true,
		Message: message,
	})
}

// ServiceUnavailable writes a 503 Service Unavailable response.
func ServiceUnavailable(w http.ResponseWriter, message string) error {
	return WriteJSON(w, http.StatusServiceUnavailable, Envelope{
		Error:   true,
		Message: message,
	})
}

// ValidationError writes a 422 response with field-level details.
func ValidationError(w http.ResponseWriter, details []ErrorDetail) error {
	return WriteJSON(w, http.StatusUnprocessableEntity, Envelope{
		Error:   true,
		Message: "Validation failed",
		Details: details,
	})
}
