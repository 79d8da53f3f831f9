package main

import (
	"context"
	"errors"

	"github.com/platinummonkey/rolegate/pkg/audit"
)

// closeResources stops background audit work once the server has drained.
// The database, Redis and tracer are closed by run on return.
func closeResources(ctx context.Context, auditLogger audit.Logger, retention *audit.RetentionJob) error {
	var errs []error
	if retention != nil {
		errs = append(errs, retention.Stop(ctx))
	}
	errs = append(errs, auditLogger.Close())
	return errors.Join(errs...)
}
