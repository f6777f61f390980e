package ui

import "embed"

// templateFS embeds the HTML templates for the browsing interface.
//
//go:embed templates/*.html
var templateFS embed.FS
