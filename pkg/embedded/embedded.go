// Package embedded provides the static dashboard compiled into the server binary.
package embedded

import (
	"embed"
	"io/fs"
)

// Files holds the dashboard:
//   - dashboard/index.html - parameter sliders, run list and live progress
//   - dashboard/assets/ - script and stylesheet loaded by index.html
//
//go:embed dashboard
var Files embed.FS

// Dashboard returns the dashboard tree rooted at index.html.
func Dashboard() (fs.FS, error) {
	return fs.Sub(Files, "dashboard")
}
