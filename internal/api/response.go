// Thermoshare - Collaborative Appliance Schedule Coordination
// Copyright 2026 Thermoshare Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/thermoshare/thermoshare

// Package api provides the REST surface of the scheduler: chi routing, the
// uniform response envelope and the websocket upgrade endpoint.
package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/thermoshare/thermoshare/internal/logging"
	"github.com/thermoshare/thermoshare/internal/models"
	"github.com/thermoshare/thermoshare/internal/schedule"
)

// APIResponse is the uniform envelope for every REST response. Conflicts
// and Message are populated only for conflict rejections so the client can
// render a human-readable explanation without extra requests.
type APIResponse struct {
	Success   bool                    `json:"success"`
	Data      interface{}             `json:"data,omitempty"`
	Error     *APIError               `json:"error,omitempty"`
	Conflicts []*models.ScheduleEntry `json:"conflicts,omitempty"`
	Message   string                  `json:"message,omitempty"`
}

// APIError carries machine-readable error details.
type APIError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, resp APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logging.Error().Err(err).Msg("failed to encode response")
	}
}

// respondSuccess writes a success envelope with the given payload.
func respondSuccess(w http.ResponseWriter, status int, data interface{}) {
	respondJSON(w, status, APIResponse{Success: true, Data: data})
}

// respondError writes an error envelope.
func respondError(w http.ResponseWriter, status int, code, message string, details interface{}) {
	respondJSON(w, status, APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: message, Details: details},
	})
}

// respondStoreError maps the store's error taxonomy onto HTTP statuses.
// Conflict rejections carry the full conflict list plus the first-conflict
// message.
func respondStoreError(w http.ResponseWriter, err error) {
	switch {
	case schedule.IsConflict(err):
		ce, _ := schedule.AsConflict(err)
		respondJSON(w, http.StatusConflict, APIResponse{
			Success:   false,
			Error:     &APIError{Code: models.ErrCodeConflict, Message: ce.Error()},
			Conflicts: ce.Conflicts,
			Message:   ce.Error(),
		})
	case schedule.IsValidation(err):
		respondError(w, http.StatusUnprocessableEntity, models.ErrCodeValidationFailed, err.Error(), nil)
	case schedule.IsNotFound(err):
		respondError(w, http.StatusNotFound, models.ErrCodeNotFound, err.Error(), nil)
	default:
		logging.Error().Err(err).Msg("unexpected store error")
		respondError(w, http.StatusInternalServerError, models.ErrCodeInternalError, "internal error", nil)
	}
}
