// Package audit records role and assignment changes.
//
// The role service emits one AuditEvent per mutation through a Logger.
// DBLogger persists events to the audit_events table and RetentionJob prunes
// them on a cron schedule:
//
//	logger, _ := audit.NewDBLogger(db)
//	job, _ := audit.NewRetentionJob(logger, 90*24*time.Hour, "@daily", log)
//	job.Start()
package audit
