package db

import "embed"

// Migrations содержит SQL-миграции, вшитые в бинарник.
//
//go:embed migrations/*.sql
var Migrations embed.FS
