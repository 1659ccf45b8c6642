package adapter

import (
	"encoding/json"
	"errors"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/googleapi"

	"github.com/Ning0612/drivesync/internal/domain"
)

// MapError converts Google API errors to *domain.RemoteError carrying the
// first structured error detail. Other errors pass through.
func MapError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return err
	}

	remote := &domain.RemoteError{
		Code:    apiErr.Code,
		Message: apiErr.Message,
		Err:     err,
	}

	details := apiErr.Errors
	if len(details) == 0 && apiErr.Body != "" {
		// Media requests return the error JSON unparsed
		details, remote.Message = parseErrorBody(apiErr.Body, remote.Message)
	}
	if len(details) > 0 {
		remote.Reason = details[0].Reason
		if details[0].Message != "" {
			remote.Message = details[0].Message
		}
	}
	return remote
}

func parseErrorBody(body, fallback string) ([]googleapi.ErrorItem, string) {
	var payload struct {
		Error struct {
			Message string                `json:"message"`
			Errors  []googleapi.ErrorItem `json:"errors"`
		} `json:"error"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return nil, fallback
	}
	if payload.Error.Message != "" {
		fallback = payload.Error.Message
	}
	return payload.Error.Errors, fallback
}

// EndSpan records err on span, if any, and ends it
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
