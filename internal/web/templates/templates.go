// Package templates embeds the HTML templates of the web UI.
package templates

import "embed"

//go:embed *.html pages/*.html partials/*.html
var FS embed.FS
