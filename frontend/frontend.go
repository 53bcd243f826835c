// Package frontend provides the embedded HTML templates and static assets.
package frontend

import (
	"embed"
	"html/template"
	"io/fs"
)

// Files contains the embedded web frontend.
//
//go:embed templates/*.html static/*
var Files embed.FS

// Static returns the static assets, rooted so that "style.css" is at the top.
func Static() fs.FS {
	sub, err := fs.Sub(Files, "static")
	if err != nil {
		panic(err)
	}
	return sub
}

// Templates parses the page templates. Each page is looked up by its file name,
// e.g. "list.html".
func Templates() (*template.Template, error) {
	return template.New("").ParseFS(Files, "templates/*.html")
}
