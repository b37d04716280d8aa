// Package migrations embeds the SQL schema migrations into the server binary
// so deployments never depend on a migrations directory being present on
// disk. Goose reads the files through FS.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
