// Package handlers is the thin HTTP front-end (spec §1/§6): it parses
// requests, invokes the core's operations, and serializes results. It owns
// no business logic — routing and pagination live here;
// everything else is delegated to the internal/* core packages. Grounded on
// the teacher's handlers/agent_handlers.go gin.Context handler shape.
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	coreerrors "github.com/docqa/ragcore/internal/core/errors"
)

// errorResponse is the stable wire-level error envelope of spec §7:
// "structured error responses with a stable code, a human message,
// optional details, a timestamp, and a correlation id."
type errorResponse struct {
	Code          string `json:"code"`
	Message       string `json:"message"`
	Details       string `json:"details,omitempty"`
	Timestamp     string `json:"timestamp"`
	CorrelationID string `json:"correlation_id"`
}

// codeStatus maps the core's stable error codes to HTTP status codes (spec
// §7's taxonomy table).
var codeStatus = map[coreerrors.Code]int{
	coreerrors.CodeFileValidation:       http.StatusBadRequest,
	coreerrors.CodeBatchTooLarge:        http.StatusBadRequest,
	coreerrors.CodeDuplicateDocument:    http.StatusConflict,
	coreerrors.CodeExtractionFailed:     http.StatusUnprocessableEntity,
	coreerrors.CodePageLimitExceeded:    http.StatusBadRequest,
	coreerrors.CodeEmptyDocument:        http.StatusUnprocessableEntity,
	coreerrors.CodeEmbeddingFailed:      http.StatusBadGateway,
	coreerrors.CodeVectorStoreFailed:    http.StatusBadGateway,
	coreerrors.CodeDimensionMismatch:    http.StatusInternalServerError,
	coreerrors.CodeTokenizerUnavailable: http.StatusInternalServerError,
	coreerrors.CodeGenerationFailed:     http.StatusBadGateway,
	coreerrors.CodeInvalidQuery:         http.StatusBadRequest,
	coreerrors.CodeNotFound:             http.StatusNotFound,
	coreerrors.CodeInternal:             http.StatusInternalServerError,
}

// writeError renders err as the spec §7 error envelope. Internal errors
// never leak their underlying detail to the client ("no stack traces, no
// credentials").
func writeError(c *gin.Context, err error) {
	var coded coreerrors.CodedError
	if !errors.As(err, &coded) {
		coded = &coreerrors.InternalError{Err: err}
	}

	status, ok := codeStatus[coded.Code()]
	if !ok {
		status = http.StatusInternalServerError
	}

	resp := errorResponse{
		Code:          string(coded.Code()),
		Message:       coded.Error(),
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		CorrelationID: correlationID(c),
	}
	if coded.Code() == coreerrors.CodeInternal {
		resp.Message = "internal error"
	}
	c.JSON(status, gin.H{"error": resp})
}

// correlationID returns the inbound X-Request-ID header, or mints a fresh
// one, so every error response can be traced back to a single request.
func correlationID(c *gin.Context) string {
	if id := c.GetHeader("X-Request-ID"); id != "" {
		return id
	}
	return uuid.NewString()
}
