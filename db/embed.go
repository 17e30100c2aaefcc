// Package db embeds the schema migrations and seed data so the
// migration runner and test harness do not depend on the working
// directory.
package db

import "embed"

//go:embed migrations/*.sql seed/*.yaml
var FS embed.FS
