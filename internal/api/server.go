package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"trafficscope/internal/model"
	"trafficscope/internal/notify"
	"trafficscope/internal/traffic"

	"github.com/gorilla/mux"
)

// Server exposes the read surfaces of the core over HTTP: the aggregator
// overview for the presentation layer, the bounded notification log for an
// alerts view, and the favorite flag as the single external write hook.
type Server struct {
	traffic *traffic.InfoTraffic
	engine  *notify.Engine
	server  *http.Server
}

// NewServer wires the routes and returns an unstarted server.
func NewServer(listenAddr string, t *traffic.InfoTraffic, engine *notify.Engine) *Server {
	s := &Server{traffic: t, engine: engine}

	r := mux.NewRouter()
	r.HandleFunc("/api/v1/traffic", s.trafficHandler).Methods("GET")
	r.HandleFunc("/api/v1/notifications", s.notificationsHandler).Methods("GET")
	r.HandleFunc("/api/v1/favorites/{index}", s.favoriteHandler).Methods("POST")

	s.server = &http.Server{Addr: listenAddr, Handler: r}
	return s
}

// Start begins serving in a background goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("API server starting on %s", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v", s.server.Addr, err)
		}
	}()
}

// Stop gracefully shuts the server down.
func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		log.Printf("API server forced to shutdown: %v", err)
	}
}

// trafficOverview is the JSON shape of the aggregator read surface.
type trafficOverview struct {
	Totals       traffic.Totals    `json:"totals"`
	AppProtocols map[string]uint64 `json:"app_protocols"`
	Connections  []traffic.Entry   `json:"connections"`
}

func (s *Server) trafficHandler(w http.ResponseWriter, r *http.Request) {
	snapshot := s.traffic.Snapshot()

	protocols := make(map[string]uint64, len(snapshot.AppProtocols))
	for proto, count := range snapshot.AppProtocols {
		protocols[proto.String()] = count
	}

	writeJSON(w, trafficOverview{
		Totals:       snapshot.Totals,
		AppProtocols: protocols,
		Connections:  snapshot.Entries,
	})
}

// loggedAlert tags each notification with its variant for JSON consumers.
type loggedAlert struct {
	Kind  string                   `json:"kind"`
	Alert model.LoggedNotification `json:"alert"`
}

func (s *Server) notificationsHandler(w http.ResponseWriter, r *http.Request) {
	notifications := s.engine.Notifications()
	alerts := make([]loggedAlert, 0, len(notifications))
	for _, n := range notifications {
		alerts = append(alerts, loggedAlert{Kind: n.Kind(), Alert: n})
	}
	writeJSON(w, alerts)
}

func (s *Server) favoriteHandler(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid connection index: %v", err), http.StatusBadRequest)
		return
	}

	var req struct {
		Favorite bool `json:"favorite"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("failed to decode request: %v", err), http.StatusBadRequest)
		return
	}

	if err := s.traffic.SetFavorite(index, req.Favorite); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, payload interface{}) {
	jsonBytes, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to marshal response: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(jsonBytes)
}
