// Package web holds the front-end document served for non-API routes.
package web

import _ "embed"

//go:embed index.html
var Index []byte
