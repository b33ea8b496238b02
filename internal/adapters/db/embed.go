// internal/adapters/db/embed.go
package db

import "embed"

// MigrationFiles holds the schema migrations compiled into the binary so
// deployments never depend on a migrations directory being present on disk.
//
//go:embed migrations/*.sql
var MigrationFiles embed.FS
