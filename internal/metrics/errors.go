package metrics

import (
	"strings"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
)

// Error type constants for metrics labels.
const (
	ErrorTypeConflict    = "conflict"
	ErrorTypeNotFound    = "not_found"
	ErrorTypeAuth        = "auth"
	ErrorTypeInvalid     = "invalid"
	ErrorTypeRateLimit   = "rate_limit"
	ErrorTypeServerError = "server_error"
	ErrorTypeTimeout     = "timeout"
	ErrorTypeNetwork     = "network"
	ErrorTypeMalformed   = "malformed"
	ErrorTypeUnknown     = "unknown"
)

// ClassifyAPIError classifies an error from the Kubernetes API for metrics labeling.
// Returns an empty string for nil errors.
func ClassifyAPIError(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case apierrors.IsConflict(err) || apierrors.IsAlreadyExists(err):
		return ErrorTypeConflict
	case apierrors.IsNotFound(err) || apierrors.IsGone(err):
		return ErrorTypeNotFound
	case apierrors.IsUnauthorized(err) || apierrors.IsForbidden(err):
		return ErrorTypeAuth
	case apierrors.IsInvalid(err) || apierrors.IsBadRequest(err):
		return ErrorTypeInvalid
	case apierrors.IsTooManyRequests(err):
		return ErrorTypeRateLimit
	case apierrors.IsTimeout(err) || apierrors.IsServerTimeout(err):
		return ErrorTypeTimeout
	case apierrors.IsServiceUnavailable(err) || apierrors.IsInternalError(err):
		return ErrorTypeServerError
	}

	// Fallback for non-API errors based on error message
	return classifyByErrorMessage(err.Error())
}

func classifyByErrorMessage(errStr string) string {
	errLower := strings.ToLower(errStr)

	switch {
	case strings.Contains(errLower, "timeout") || strings.Contains(errLower, "deadline"):
		return ErrorTypeTimeout
	case strings.Contains(errLower, "connection refused") || strings.Contains(errLower, "no such host"):
		return ErrorTypeNetwork
	default:
		return ErrorTypeUnknown
	}
}
