package server

import (
	"encoding/json"
	"html/template"
	"net/http"

	"RbxFM/logger"
)

var homeTemplate = template.Must(template.New("home").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>RbxFM</title></head>
<body>
<h1>RbxFM Music API</h1>
<p>Server is running.</p>
<h3>Endpoints</h3>
<ul>
<li><a href="/api/playlist">GET /api/playlist</a> - list songs</li>
<li>POST /api/playlist - add a song</li>
<li>POST /api/request - request a song from the game</li>
<li>PUT /api/playlist/{index} - update a song</li>
<li>DELETE /api/playlist/{index} - delete a song</li>
<li>POST /api/playlist/reset - restore the default playlist</li>
<li>GET /ws/playlist - live playlist feed (websocket)</li>
</ul>
<h3>Current playlist ({{.Count}} songs)</h3>
<pre>{{.JSON}}</pre>
</body>
</html>
`))

// HomeHandler renders a status page with the current playlist.
func (h *PlaylistHandler) HomeHandler(w http.ResponseWriter, r *http.Request) {
	playlist := h.store.Get(r.Context())

	pretty, err := json.MarshalIndent(playlist, "", "  ")
	if err != nil {
		http.Error(w, "failed to render playlist", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := struct {
		Count int
		JSON  string
	}{len(playlist), string(pretty)}
	if err := homeTemplate.Execute(w, data); err != nil {
		logger.Warn("failed to render home page", logger.ErrorField(err))
	}
}
