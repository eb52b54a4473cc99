// Package db embeds the goose SQL migrations.
package db

import "embed"

// Migrations holds every file under migrations/, applied in version order.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory of Migrations goose reads from.
const MigrationsDir = "migrations"
