// Package database opens the SQL and Redis connections used by rolegate.
package database
