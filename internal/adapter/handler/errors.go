package handler

import (
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"

	"github.com/rl1809/pos-checkout/internal/core/domain"
)

type errorClass struct {
	err    error
	status int
	code   codes.Code
	name   string
	expose bool
}

var errorClasses = []errorClass{
	{domain.ErrValidation, http.StatusBadRequest, codes.InvalidArgument, "validation_failed", true},
	{domain.ErrDuplicateRequest, http.StatusConflict, codes.AlreadyExists, "duplicate_request", true},
	{domain.ErrNotFound, http.StatusNotFound, codes.NotFound, "not_found", true},
	{domain.ErrSchemaIncompatible, http.StatusUnprocessableEntity, codes.FailedPrecondition, "schema_incompatible", false},
	{domain.ErrWriteRejected, http.StatusUnprocessableEntity, codes.FailedPrecondition, "write_rejected", false},
	{domain.ErrStoreUnavailable, http.StatusServiceUnavailable, codes.Unavailable, "store_unavailable", false},
}

// classify maps a service error onto its transport representation. Internal
// details are only exposed for errors caused by the caller.
func classify(err error) (int, codes.Code, ErrorResponse) {
	for _, c := range errorClasses {
		if errors.Is(err, c.err) {
			msg := c.err.Error()
			if c.expose {
				msg = err.Error()
			}
			return c.status, c.code, ErrorResponse{Error: c.name, Message: msg}
		}
	}
	return http.StatusInternalServerError, codes.Internal, ErrorResponse{Error: "internal", Message: "internal error"}
}
