// Package migration holds the schema scripts of the alarm store, applied in
// file name order by sqlite.Migrate.
package migration

import "embed"

//go:embed *.sql
var Scripts embed.FS
