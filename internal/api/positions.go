package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"positionScope/internal/aggregate"
	"positionScope/internal/retry"
	"positionScope/internal/storage"
)

// statusClientClosedRequest is the non-standard code for a caller that went away.
const statusClientClosedRequest = 499

type errorResponse struct {
	Error string `json:"error"`
}

type positionsHandler struct {
	snapshots aggregate.Snapshotter
	sink      storage.Sink
	logger    *zap.Logger
}

func (h *positionsHandler) getPositions(c *gin.Context) {
	wallet := c.Param("address")
	ctx := c.Request.Context()

	snap, err := h.snapshots.Snapshot(ctx, wallet)
	if err != nil {
		code := statusFor(err)
		if code == statusClientClosedRequest {
			c.Status(code)
			return
		}
		if code >= http.StatusInternalServerError {
			h.logger.Error("snapshot failed", zap.String("wallet", wallet), zap.Error(err))
		}
		c.JSON(code, errorResponse{Error: err.Error()})
		return
	}

	if h.sink != nil {
		if err := h.sink.PutSnapshot(ctx, snap); err != nil {
			h.logger.Warn("persist snapshot failed",
				zap.String("invocation_id", snap.InvocationID),
				zap.Error(err),
			)
		}
	}
	c.JSON(http.StatusOK, snap)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, aggregate.ErrInvalidAddress):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, aggregate.ErrSuperseded):
		return statusClientClosedRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, retry.ErrRetryExhausted):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
