package errutil

import (
	"context"
	"errors"

	"github.com/getsentry/sentry-go"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/stratagem/pkg/utils/logging"
)

// Handle logs the error with its goerr context values and reports it to
// Sentry when a Sentry client has been initialized.
func Handle(ctx context.Context, err error, msg string) error {
	if err == nil {
		return nil
	}

	logger := logging.From(ctx)

	var ge *goerr.Error
	if errors.As(err, &ge) {
		logger.Error(msg,
			"error", err.Error(),
			"values", ge.Values(),
			"stack", ge.Stacks(),
		)
	} else {
		logger.Error(msg, "error", err.Error())
	}

	if hub := sentry.CurrentHub(); hub.Client() != nil {
		hub.WithScope(func(scope *sentry.Scope) {
			scope.SetTag("message", msg)
			if ge != nil {
				for k, v := range ge.Values() {
					scope.SetExtra(k, v)
				}
			}
			hub.CaptureException(err)
		})
	}

	return err
}

// Warn logs a recoverable error at warning level with its goerr context values
func Warn(ctx context.Context, err error, msg string) {
	if err == nil {
		return
	}

	logger := logging.From(ctx)
	var ge *goerr.Error
	if errors.As(err, &ge) {
		logger.Warn(msg, "error", err.Error(), "values", ge.Values())
		return
	}
	logger.Warn(msg, "error", err.Error())
}
