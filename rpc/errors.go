package rpc

import (
	"encoding/json"
	"errors"
	"net/http"

	"granary/native/registry"
	"granary/native/vault"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Error: message})
}

// statusFor maps engine and registry errors onto HTTP status codes following
// the error taxonomy: authorization failures, precondition violations, and
// invariant-guard failures are all surfaced distinctly.
func statusFor(err error) int {
	switch {
	case errors.Is(err, registry.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, vault.ErrInvalidAmount),
		errors.Is(err, vault.ErrDepositBelowMinimum),
		errors.Is(err, vault.ErrInvalidReward),
		errors.Is(err, registry.ErrReservedProtocolID),
		errors.Is(err, registry.ErrInvalidProtocolName),
		errors.Is(err, registry.ErrNilAdapter),
		errors.Is(err, registry.ErrZeroAddress):
		return http.StatusBadRequest
	case errors.Is(err, vault.ErrInsufficientBalance),
		errors.Is(err, registry.ErrProtocolExists),
		errors.Is(err, registry.ErrAdapterExists):
		return http.StatusConflict
	case errors.Is(err, registry.ErrProtocolNotRegistered),
		errors.Is(err, registry.ErrAdapterNotFound),
		errors.Is(err, registry.ErrNoActiveProtocol):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func respondEngineError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}
