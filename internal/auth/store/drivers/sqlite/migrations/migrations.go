package migrations

import "embed"

// Migrations holds the numbered golang-migrate scripts compiled into the
// binary.
//
//go:embed *.sql
var Migrations embed.FS
