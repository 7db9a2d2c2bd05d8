// Package web holds the status page of the monitoring server.
package web

import (
	"embed"
	"io/fs"
	"log"
	"net/http"
)

//go:embed dist/*
var staticAssets embed.FS

// GetAssets returns the files of the status page, rooted at the page
// directory.
func GetAssets() http.FileSystem {
	dist, err := fs.Sub(staticAssets, "dist")
	if err != nil {
		log.Panic(err)
	}

	return http.FS(dist)
}
