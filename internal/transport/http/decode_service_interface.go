package http

import (
	"context"

	"findecoder/internal/services"
	"findecoder/pkg/contracts/domain"
)

// DecodeServiceInterface is the slice of the decode service the handler
// needs; tests substitute a stub.
type DecodeServiceInterface interface {
	DecodeAll(ctx context.Context, requestID string, uploads []services.Upload) (domain.Bundle, error)
}

// ReportReader looks up assembled reports by ID. Satisfied by report.Store.
type ReportReader interface {
	Get(id string) (domain.Report, error)
}
