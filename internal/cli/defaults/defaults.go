// Package defaults provides embedded starter files written by init.
package defaults

import "embed"

//go:embed site.yaml tasks.yaml
var defaultsFS embed.FS

// FS returns the embedded filesystem of starter files.
func FS() embed.FS {
	return defaultsFS
}
