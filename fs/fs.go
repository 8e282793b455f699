// Package appfs embeds the static assets shipped with every binary.
package appfs

import "embed"

//go:embed migrations all:templates
var FS embed.FS
