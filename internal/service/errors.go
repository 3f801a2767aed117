package service

import (
	"errors"

	"go.uber.org/zap"
)

var (
	// ErrMissingField means type, action, targets, tenant_id or another required
	// field is absent or not valid for the event type.
	ErrMissingField = errors.New("missing required field")
	// ErrMissingSourceTracking means origin_system or updated_by_system is absent.
	ErrMissingSourceTracking = errors.New("missing source tracking")
	// ErrUnsupportedSyncMode means the sync mode cannot be dispatched for this event.
	ErrUnsupportedSyncMode = errors.New("unsupported sync mode")
	// ErrBrokerAppend means the durable append to the primary stream failed.
	ErrBrokerAppend = errors.New("broker append failed")
	// ErrSchedulerClosed is returned by Schedule after Shutdown.
	ErrSchedulerClosed = errors.New("batch scheduler is shut down")
)

// IsValidation reports whether err is one of the enrichment/dispatch rejections.
func IsValidation(err error) bool {
	return errors.Is(err, ErrMissingField) ||
		errors.Is(err, ErrMissingSourceTracking) ||
		errors.Is(err, ErrUnsupportedSyncMode)
}

// bestEffort logs the outcome of a side effect that must never fail its caller.
func bestEffort(log *zap.SugaredLogger, op string, err error, kv ...interface{}) {
	if err == nil {
		return
	}
	log.Warnw(op+" failed", append(kv, "err", err)...)
}
