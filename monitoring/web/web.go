// Package web holds the dashboard page of the monitoring server.
package web

import (
	"embed"
	"io/fs"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
)

//go:embed dist/*
var dist embed.FS

// DevModeEnv names the environment variable that makes the server read the
// pages from the source tree, so that they can be edited without rebuilding.
const DevModeEnv = "PGTRACE_MONITOR_DEV"

// GetAssets returns the file system that the dashboard is served from.
func GetAssets() http.FileSystem {
	if devMode() {
		dir := sourceDir()
		log.Printf("monitoring dashboard served from %s", dir)

		return http.Dir(dir)
	}

	sub, err := fs.Sub(dist, "dist")
	if err != nil {
		panic(err)
	}

	return http.FS(sub)
}

func sourceDir() string {
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		panic("cannot locate the monitoring sources")
	}

	return filepath.Join(filepath.Dir(thisFile), "dist")
}

func devMode() bool {
	on, err := strconv.ParseBool(os.Getenv(DevModeEnv))

	return err == nil && on
}
