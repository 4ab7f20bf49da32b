// Package common holds error helpers shared by the server and its jobs.
package common

import (
	"errors"
	"runtime/debug"

	"github.com/hivedesk/portal/logger"
)

// Combine joins the non-nil errors, returning nil when there are none.
func Combine(errs ...error) error {
	return errors.Join(errs...)
}

// Recover stops a panic in the calling goroutine and logs it with the
// stack. It must be deferred directly.
func Recover(task string) {
	if r := recover(); r != nil {
		logger.Errorf("%s panic: %v\n%s", task, r, debug.Stack())
	}
}
