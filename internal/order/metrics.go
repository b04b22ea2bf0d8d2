package order

import (
	"errors"

	"github.com/shashiranjanraj/cartsync/internal/metrics"
)

func observe(driver, op string, err error) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		result = "not_found"
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrInvalidStatus):
		result = "rejected"
	default:
		result = "error"
	}
	metrics.LedgerOps.WithLabelValues(driver, op, result).Inc()
}
