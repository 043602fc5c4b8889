// server serves a live training monitor: a single page whose numbers are
// pushed from the training loop over a websocket, rather than polled. The
// page is intentionally spartan; the interesting part is the push pipeline
// from episode stats to idempotent element updates.
package server

import (
	"context"
	"fmt"
	"html/template"
	"log"
	"net/http"

	"framestack/reinforcement"
)

// Server serves the monitor page to a single client over a single websocket.
// The stats channel is consumed by whichever client connects; muxing updates
// to many clients is out of scope for a development monitor.
type Server struct {
	addr string
	view *StatsView
	ctx  context.Context
}

// NewServer builds the stats view over the passed stats channel.
func NewServer(
	ctx context.Context,
	addr string,
	stats <-chan reinforcement.EpisodeStats,
) *Server {
	return &Server{
		addr: addr,
		view: NewStatsView("training-stats", ctx.Done(), stats),
		ctx:  ctx,
	}
}

func (server *Server) Serve() (err error) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", server.serveIndex)
	mux.HandleFunc("/ws", server.serveWebsocket)

	httpServer := &http.Server{
		Addr:    server.addr,
		Handler: mux,
	}
	go func() {
		<-server.ctx.Done()
		_ = httpServer.Close()
	}()

	if err = httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		err = fmt.Errorf("serve: %w", err)
	} else {
		err = nil
	}
	return
}

func (server *Server) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	client, err := NewClient(server.view.Updates(), w, r)
	if err != nil {
		log.Println("upgrade:", err)
		return
	}

	if err := client.Sync(); err != nil {
		log.Println("websocket closed:", err)
	}
}

// serveIndex assembles the monitor page: the websocket bootstrap code by
// which the server pushes new data into the view, plus the stats view itself.
func (server *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	index, err := server.parseIndex(r.Host)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if err := index.ExecuteTemplate(w, "mainpage", nil); err != nil {
		log.Println("execute:", err)
	}
}

func (server *Server) parseIndex(host string) (*template.Template, error) {
	root := template.New("index")

	viewName, err := server.view.Parse(root)
	if err != nil {
		return nil, err
	}

	// The main template bootstraps the rest: client websocket setup, then the
	// nested view templates.
	indexTemplate := `
	{{ define "mainpage" }}
	<!DOCTYPE html>
	<html>
		<head>
			<link rel="icon" href="data:,">
			<!--The client bootstrap code by which the server pushes new data into the view via websocket.-->
			<script>
				const ws = new WebSocket("ws://` + template.JSEscapeString(host) + `/ws");
				ws.onopen = function (event) {
					console.log("Web socket opened")
				};

				ws.onerror = function (event) {
					console.log('WebSocket error: ', event);
				};

				// When the server pushes view updates, find these eles and update them.
				ws.onmessage = function (event) {
					items = JSON.parse(event.data)
					for (const update of items) {
						const ele = document.getElementById(update.EleId)
						for (const op of update.Ops) {
							if (op.Key === "textContent") {
								ele.textContent = op.Value;
							} else {
								ele.setAttribute(op.Key, op.Value)
							}
						}
					}
				}
			</script>
		</head>
		<body>
			<h3>Training</h3>
			{{ template "` + viewName + `" . }}
		</body>
	</html>
	{{ end }}
	`

	return root.Parse(indexTemplate)
}
