package internal

import (
	"encoding/json"
	"net/http"
)

// Error codes for the structured error surface. Validation and
// authorization responses carry enough detail for the caller to correct
// the request; invariant violations are internal and deliberately vague.
const (
	codeValidation           = "VALIDATION_ERROR"
	codeNotFound             = "NOT_FOUND"
	codeAuthorization        = "AUTHORIZATION_ERROR"
	codeInventoryUnavailable = "INVENTORY_UNAVAILABLE"
	codeConflict             = "CONFLICT"
	codeInvariantViolation   = "INVARIANT_VIOLATION"
	codeAssociatedUnitMiss   = "ASSOCIATED_UNIT_MISSING"
)

// errorResponse is the JSON error envelope
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func sendError(w http.ResponseWriter, message, code string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(errorResponse{Error: message, Code: code}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func sendValidationError(w http.ResponseWriter, message string) {
	sendError(w, message, codeValidation, http.StatusBadRequest)
}

func sendNotFound(w http.ResponseWriter) {
	sendError(w, "not found", codeNotFound, http.StatusNotFound)
}

func sendAuthorizationError(w http.ResponseWriter, message string) {
	sendError(w, message, codeAuthorization, http.StatusForbidden)
}

func sendInventoryUnavailable(w http.ResponseWriter, message string) {
	sendError(w, message, codeInventoryUnavailable, http.StatusConflict)
}

func sendConflict(w http.ResponseWriter, message string) {
	sendError(w, message, codeConflict, http.StatusConflict)
}

func sendInvariantViolation(w http.ResponseWriter) {
	sendError(w, "internal invariant violation", codeInvariantViolation, http.StatusInternalServerError)
}
