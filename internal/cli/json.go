package cli

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"strings"

	"github.com/rileyhilliard/bealink/internal/agent"
	"github.com/rileyhilliard/bealink/internal/errors"
)

// JSONEnvelope wraps command output in a consistent structure for machine parsing.
// All --json output should use this envelope.
type JSONEnvelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *JSONError  `json:"error,omitempty"`
}

// JSONError provides structured error information for machine parsing.
type JSONError struct {
	Code       string      `json:"code"`
	Message    string      `json:"message"`
	Suggestion string      `json:"suggestion,omitempty"`
	Details    interface{} `json:"details,omitempty"`
}

// Error codes for machine-readable output.
const (
	ErrCodeConfigNotFound   = "CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid    = "CONFIG_INVALID"
	ErrCodeDeviceNotFound   = "DEVICE_NOT_FOUND"
	ErrCodeDeviceOffline    = "DEVICE_OFFLINE"
	ErrCodeInvalidInput     = "INVALID_INPUT"
	ErrCodeResolveFailed    = "RESOLVE_FAILED"
	ErrCodeAgentTimeout     = "AGENT_TIMEOUT"
	ErrCodeAgentUnreachable = "AGENT_UNREACHABLE"
	ErrCodeAgentRejected    = "AGENT_REJECTED"
	ErrCodeStore            = "STORE_FAILED"
	ErrCodeUnknown          = "UNKNOWN"
)

// WriteJSONSuccess writes a successful response with data to the writer.
func WriteJSONSuccess(w io.Writer, data interface{}) error {
	env := JSONEnvelope{
		Success: true,
		Data:    data,
	}
	return writeJSONEnvelope(w, env)
}

// WriteJSONFromError converts a Go error to a JSON error response.
func WriteJSONFromError(w io.Writer, err error) error {
	env := JSONEnvelope{
		Success: false,
		Error:   ErrorToJSON(err),
	}
	return writeJSONEnvelope(w, env)
}

// writeJSONEnvelope writes the envelope with consistent formatting.
func writeJSONEnvelope(w io.Writer, env JSONEnvelope) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(env)
}

// ErrorToJSON converts a Go error to a JSONError with appropriate code mapping.
func ErrorToJSON(err error) *JSONError {
	if err == nil {
		return nil
	}

	var reqErr *agent.RequestError
	hasReq := stderrors.As(err, &reqErr)

	var blErr *errors.Error
	if stderrors.As(err, &blErr) {
		out := &JSONError{
			Code:       mapErrorCode(blErr.Code, blErr.Message),
			Message:    errors.Message(err),
			Suggestion: blErr.Suggestion,
		}
		if hasReq {
			out.Code = requestErrorCode(reqErr)
			out.Details = requestErrorDetails(reqErr)
		}
		return out
	}

	if hasReq {
		return &JSONError{
			Code:    requestErrorCode(reqErr),
			Message: reqErr.Error(),
			Details: requestErrorDetails(reqErr),
		}
	}

	return &JSONError{
		Code:    ErrCodeUnknown,
		Message: err.Error(),
	}
}

// mapErrorCode maps internal error codes to machine-readable codes.
func mapErrorCode(internalCode, message string) string {
	msgLower := strings.ToLower(message)
	switch internalCode {
	case errors.ErrConfig:
		if strings.Contains(msgLower, "not found") {
			return ErrCodeConfigNotFound
		}
		return ErrCodeConfigInvalid
	case errors.ErrValidation:
		return ErrCodeInvalidInput
	case errors.ErrResolve:
		return ErrCodeResolveFailed
	case errors.ErrTransport:
		return ErrCodeAgentUnreachable
	case errors.ErrProtocol:
		return ErrCodeAgentRejected
	case errors.ErrStore:
		return ErrCodeStore
	case errors.ErrDevice:
		if strings.Contains(msgLower, "offline") {
			return ErrCodeDeviceOffline
		}
		return ErrCodeDeviceNotFound
	}
	return ErrCodeUnknown
}

func requestErrorCode(err *agent.RequestError) string {
	switch {
	case err.Kind == agent.KindProtocol:
		return ErrCodeAgentRejected
	case err.Kind == agent.KindValidation:
		return ErrCodeInvalidInput
	case agent.IsTimeout(err):
		return ErrCodeAgentTimeout
	default:
		return ErrCodeAgentUnreachable
	}
}

func requestErrorDetails(err *agent.RequestError) map[string]interface{} {
	details := map[string]interface{}{
		"kind":   err.Kind.String(),
		"reason": err.Reason.String(),
	}
	if err.StatusCode != 0 {
		details["status"] = err.StatusCode
	}
	return details
}
