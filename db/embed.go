// Package db embeds the SQL migrations and development seeds.
package db

import "embed"

// Migrations holds goose migrations, applied with goose.SetBaseFS(Migrations)
// and directory "migrations".
//
//go:embed migrations/*.sql
var Migrations embed.FS

//go:embed seeds/*.sql
var Seeds embed.FS
