// Package migrations embeds the SQL schema and applies it at startup so
// daemons can bring a fresh database up without external tooling. The
// embedded files mirror the sql/ directory at the repository root.
package migrations

import "embed"

// PostgresFS embeds all PostgreSQL migration files.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS embeds all ClickHouse migration files.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS
