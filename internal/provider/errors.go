package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"

	openai "github.com/meguminnnnnnnnn/go-openai"
)

// Kind classifies a remote completion failure. The orchestration layer maps
// each kind to either a canned reply or a demotion to the rule provider, so
// no kind ever reaches the end user as a raw error.
type Kind string

const (
	KindRateLimited      Kind = "rate_limited"
	KindInvalidRequest   Kind = "invalid_request"
	KindAuthFailed       Kind = "auth_failed"
	KindConnectionFailed Kind = "connection_failed"
	KindOther            Kind = "other"
)

// RemoteError is the typed result of a failed remote model call.
type RemoteError struct {
	Kind Kind
	Err  error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote model %s: %v", e.Kind, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// Classify buckets an error from the OpenAI client into a Kind.
func Classify(err error) Kind {
	if err == nil {
		return KindOther
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindConnectionFailed
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return classifyStatus(reqErr.HTTPStatusCode)
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return KindConnectionFailed
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindConnectionFailed
	}

	return KindOther
}

func classifyStatus(code int) Kind {
	switch code {
	case http.StatusTooManyRequests:
		return KindRateLimited
	case http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity:
		return KindInvalidRequest
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindAuthFailed
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return KindConnectionFailed
	default:
		return KindOther
	}
}
