package verify

import (
	"context"
	"time"

	"github.com/ppiankov/factgate/internal/model"
)

// unmetTimeout bounds a single unmet-request write
const unmetTimeout = 5 * time.Second

// UnmetRequestSink records claims that could not be checked for lack of data
type UnmetRequestSink interface {
	RecordUnmetRequest(ctx context.Context, req model.UnmetRequest) error
}

// reportUnmet hands req to the sink on a detached goroutine. Failures and
// panics are logged at debug level and never reach the caller.
func (e *Engine) reportUnmet(req model.UnmetRequest) {
	if e.unmet == nil {
		return
	}
	req.RequestedAt = time.Now()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				e.logger.Debugw("Unmet request sink panicked", "entity", req.Entity, "attribute", req.Attribute, "panic", r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), unmetTimeout)
		defer cancel()

		if err := e.unmet.RecordUnmetRequest(ctx, req); err != nil {
			e.logger.Debugw("Failed to record unmet request", "entity", req.Entity, "attribute", req.Attribute, "error", err)
		}
	}()
}
