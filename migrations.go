package memoirbot

import "embed"

// MigrationsFS holds the SQL migrations for the Postgres file index.
//
//go:embed migrations/*.sql
var MigrationsFS embed.FS
