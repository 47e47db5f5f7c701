package vercel

import (
	"fmt"
	"net/http"

	"github.com/aretw0/tripwire/pkg/domain"
	goerrors "github.com/goliatone/go-errors"
)

// Text codes attached to the go-errors envelopes.
const (
	TextCodeTransport = "VERCEL_TRANSPORT_FAILURE"
	TextCodeStatus    = "VERCEL_UNEXPECTED_STATUS"
	TextCodeDecode    = "VERCEL_BAD_RESPONSE"
)

func describeStatus(op string, status int, apiMessage string) string {
	msg := fmt.Sprintf("%s returned %d", op, status)
	if apiMessage != "" {
		msg += ": " + apiMessage
	}
	return msg
}

// statusError wraps a non-2xx answer from the API.
func statusError(op string, status int, apiMessage string) error {
	category := goerrors.CategoryExternal
	switch status {
	case http.StatusUnauthorized:
		category = goerrors.CategoryAuth
	case http.StatusForbidden:
		category = goerrors.CategoryAuthz
	case http.StatusNotFound:
		category = goerrors.CategoryNotFound
	case http.StatusTooManyRequests:
		category = goerrors.CategoryRateLimit
	}
	err := goerrors.New("vercel: "+describeStatus(op, status, apiMessage), category).
		WithCode(status).
		WithTextCode(TextCodeStatus)
	err.WithMetadata(map[string]any{"operation": op, "status_code": status})
	return err
}

// transportError wraps a failure to reach the API or to read its answer.
func transportError(op string, source error, textCode string) error {
	err := goerrors.Wrap(source, goerrors.CategoryExternal, "vercel: "+op+" failed").
		WithCode(http.StatusBadGateway).
		WithTextCode(textCode)
	err.WithMetadata(map[string]any{"operation": op})
	return err
}

func syncError(kind domain.SyncErrorKind, detail string, cause error) *domain.SyncError {
	return &domain.SyncError{Kind: kind, Detail: detail, Err: cause}
}
