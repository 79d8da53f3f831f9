package observability

import (
	"fmt"
	"runtime/debug"

	"github.com/sirupsen/logrus"
)

// RecoverPanic recovers from a panic in a background goroutine and logs it with
// the stack. Must be deferred directly:
//
//	go func() {
//		defer observability.RecoverPanic(logger, "audit-cleanup")
//		...
//	}()
func RecoverPanic(logger logrus.FieldLogger, component string) {
	if r := recover(); r != nil {
		logPanic(logger, component, r)
	}
}

// RecoverPanicWithCallback is RecoverPanic plus a callback invoked after logging
func RecoverPanicWithCallback(logger logrus.FieldLogger, component string, callback func()) {
	if r := recover(); r != nil {
		logPanic(logger, component, r)
		if callback != nil {
			callback()
		}
	}
}

// SafeGo runs fn in a goroutine guarded by RecoverPanic
func SafeGo(logger logrus.FieldLogger, component string, fn func()) {
	go func() {
		defer RecoverPanic(logger, component)
		fn()
	}()
}

func logPanic(logger logrus.FieldLogger, component string, r interface{}) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	logger.WithFields(logrus.Fields{
		"component": component,
		"panic":     fmt.Sprintf("%v", r),
		"stack":     string(debug.Stack()),
	}).Error("Recovered from panic")
}
