// Package migrations embeds the schema migration files so the binary can
// apply them at startup without a deploy-time file dependency.
package migrations

import (
	"embed"
	"io/fs"
)

//go:embed *.sql
var files embed.FS

// Files returns the embedded migration files.
func Files() fs.FS {
	return files
}
