// Package migrations holds the bot's schema scripts, named NNN_name.sql.
package migrations

import (
	"embed"
	"io/fs"
)

//go:embed *.sql
var scripts embed.FS

// FS returns the scripts compiled into the binary.
func FS() fs.FS {
	return scripts
}
