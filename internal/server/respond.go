package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/jacksonlee411/Roots-And-Branches/pkg/domainerr"
)

const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

type envelope struct {
	Success   bool       `json:"success"`
	Data      any        `json:"data,omitempty"`
	Error     *errorBody `json:"error,omitempty"`
	Message   string     `json:"message,omitempty"`
	Timestamp string     `json:"timestamp"`
	RequestID string     `json:"requestId"`
}

type errorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func writeSuccess(w http.ResponseWriter, r *http.Request, status int, data any, message string) {
	writeEnvelope(w, status, envelope{
		Success:   true,
		Data:      data,
		Message:   message,
		Timestamp: time.Now().UTC().Format(timestampLayout),
		RequestID: currentRequestID(r.Context()),
	})
}

func writeErrorCode(w http.ResponseWriter, r *http.Request, status int, code string, message string, details map[string]any) {
	writeEnvelope(w, status, envelope{
		Success: false,
		Error: &errorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
		Timestamp: time.Now().UTC().Format(timestampLayout),
		RequestID: currentRequestID(r.Context()),
	})
}

// writeDomainError maps a service error onto the wire contract. Unknown
// errors become an opaque 500; the real cause stays in the log.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	code, ok := domainerr.CodeOf(err)
	if !ok {
		writeErrorCode(w, r, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
		return
	}

	var details map[string]any
	if derr, found := errorAs(err); found && derr.CurrentRecordID != "" {
		details = map[string]any{"currentRecordId": derr.CurrentRecordID}
	}

	message := err.Error()
	if derr, found := errorAs(err); found {
		message = derr.Message
	}
	writeErrorCode(w, r, statusForCode(code), string(code), message, details)
}

func errorAs(err error) (*domainerr.Error, bool) {
	return errors.AsType[*domainerr.Error](err)
}

func statusForCode(code domainerr.Code) int {
	switch code {
	// A deleted code is a state conflict like ALREADY_ACTIVE, not a retired
	// route; 410 stays reserved for the deprecated alias.
	case domainerr.CodeDuplicateCode, domainerr.CodeConflict,
		domainerr.CodeAlreadyActive, domainerr.CodeAlreadySuspended,
		domainerr.CodeOrganizationDeleted:
		return http.StatusConflict
	case domainerr.CodeEffectiveDateBackdated, domainerr.CodeValidationFailed:
		return http.StatusUnprocessableEntity
	case domainerr.CodeOrganizationNotFound:
		return http.StatusNotFound
	case domainerr.CodeStoreTimeout:
		return http.StatusGatewayTimeout
	case domainerr.CodeInsufficientPermissions:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func writeEnvelope(w http.ResponseWriter, status int, env envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}
