// Command cgrule-server exposes a compiled grammar as a JSON REST and
// WebSocket API, adapted from the teacher's own cmd/server: the same
// net/http + github.com/rs/cors shape, with a grammar store that
// hot-reloads on file change via fsnotify instead of lemmatizer data.
//
// Endpoints:
//
//	POST /v1/run           body: a JSONL corpus; returns the processed JSONL
//	GET  /v1/stream         upgrades to a WebSocket streaming each processed window
//	GET  /metrics           prometheus exposition
package main

import (
	"encoding/json"
	"flag"
	"log"
	"net/http"

	"github.com/cours-de-latin/cgrule"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

func main() {
	grammarPath := flag.String("grammar", "", "path to a compiled-grammar JSON document")
	addr := flag.String("addr", ":8080", "listen address")
	watch := flag.Bool("watch", true, "hot-reload the grammar on file change")
	flag.Parse()

	if *grammarPath == "" {
		log.Fatal("missing -grammar")
	}

	zlog, err := cgrule.NewProductionLogger()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zlog.Sync()

	store, err := newGrammarStore(*grammarPath, zlog)
	if err != nil {
		log.Fatalf("failed to load grammar: %v", err)
	}
	if *watch {
		if err := store.watch(); err != nil {
			log.Fatalf("failed to watch grammar file: %v", err)
		}
		defer store.close()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/run", handleRun(store, zlog))
	mux.HandleFunc("/v1/stream", handleStream(store, zlog))
	mux.Handle("/metrics", promhttp.Handler())

	handler := cors.Default().Handler(mux)

	log.Printf("listening on %s", *addr)
	if err := http.ListenAndServe(*addr, handler); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: msg})
}
