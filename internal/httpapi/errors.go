package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/alnah/guidematrix/internal/analysis"
	"github.com/alnah/guidematrix/internal/apierr"
	"github.com/alnah/guidematrix/internal/lang"
	"github.com/alnah/guidematrix/internal/schema"
	"github.com/alnah/guidematrix/internal/store"
)

// classify maps a service error to an HTTP status and a stable error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, analysis.ErrMissingConfig):
		return http.StatusBadRequest, "missing_config"
	case errors.Is(err, analysis.ErrNoDocuments):
		return http.StatusBadRequest, "no_documents"
	case errors.Is(err, analysis.ErrEmptyDocuments):
		return http.StatusBadRequest, "empty_documents"
	case errors.Is(err, schema.ErrUnknown):
		return http.StatusBadRequest, "invalid_kind"
	case errors.Is(err, lang.ErrInvalid):
		return http.StatusBadRequest, "invalid_language"
	case errors.Is(err, store.ErrInvalidKey):
		return http.StatusBadRequest, "invalid_key"
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, analysis.ErrRunInProgress):
		return http.StatusConflict, "run_in_progress"
	case errors.Is(err, analysis.ErrQualityRejected):
		return http.StatusUnprocessableEntity, "quality_rejected"
	}

	switch apierr.KindOf(err) {
	case apierr.KindConfiguration:
		return http.StatusServiceUnavailable, "provider_misconfigured"
	case apierr.KindConnectivity:
		return http.StatusBadGateway, "provider_unreachable"
	case apierr.KindUpstream:
		return http.StatusBadGateway, "provider_error"
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, "timeout"
	}
	return http.StatusInternalServerError, "internal"
}
