package handler

import (
	_ "embed"
	"net/http"
	"strconv"
)

//go:embed assets/widget.js
var widgetScript []byte

// Script handles GET /widget.js, serving the embeddable client runtime.
// The script is compiled into the binary so the API server is the only
// deployable artifact.
func Script(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.Header().Set("Content-Length", strconv.Itoa(len(widgetScript)))
	w.Write(widgetScript)
}
