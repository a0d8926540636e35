// Package webui carries the embedded single-page viewer.
package webui

import _ "embed"

//go:embed index.html
var IndexHTML []byte
