// Package config loads rolegate configuration.
//
// Values come from built-in defaults, then an optional YAML file named by
// ROLEGATE_CONFIG_FILE, then ROLEGATE_* environment variables:
//
//	ROLEGATE_PORT="8080"
//	ROLEGATE_DB_DRIVER="postgres"           # postgres or sqlite3
//	ROLEGATE_DB_DSN="postgres://..."
//	ROLEGATE_REDIS_URL="redis://localhost:6379/0"
//	ROLEGATE_ADMIN_EXTRA_GRANTS="user:list|set-role,session:list"
//	ROLEGATE_AUDIT_RETENTION="2160h"
//	ROLEGATE_LOG_LEVEL="debug"
//
// Use Watcher to pick up edits to the YAML file at runtime.
package config
