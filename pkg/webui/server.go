package webui

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/thelastdreamer/GoMSTP/pkg/protocol"
)

// Server is the HTTP status listener.
type Server struct {
	source Source
	log    *logrus.Logger

	httpServer *http.Server

	wsMu      sync.RWMutex
	wsClients map[*wsClient]bool
}

// NewServer builds the router; Start brings the listener up.
func NewServer(listen string, source Source, log *logrus.Logger) *Server {
	s := &Server{
		source:    source,
		log:       log,
		wsClients: make(map[*wsClient]bool),
	}

	r := mux.NewRouter()
	r.HandleFunc("/api/bridges", s.handleBridges).Methods(http.MethodGet)
	r.HandleFunc("/api/bridges/{bridge}", s.handleBridge).Methods(http.MethodGet)
	r.HandleFunc("/api/bridges/{bridge}/ports", s.handlePorts).Methods(http.MethodGet)
	r.HandleFunc("/api/bridges/{bridge}/trees/{mstid}", s.handleTree).Methods(http.MethodGet)
	r.HandleFunc("/api/events", s.handleWebSocket)

	s.httpServer = &http.Server{
		Addr:         listen,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Start serves until the listener fails or Stop is called.
func (s *Server) Start() {
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.WithError(err).Error("status listener failed")
		}
	}()
	s.log.WithField("listen", s.httpServer.Addr).Info("status api listening")
}

// Stop shuts the listener down and drops all stream clients.
func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	s.httpServer.Shutdown(ctx)

	s.wsMu.Lock()
	for c := range s.wsClients {
		close(c.send)
	}
	s.wsClients = make(map[*wsClient]bool)
	s.wsMu.Unlock()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) handleBridges(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.source.Bridges())
}

func (s *Server) handleBridge(w http.ResponseWriter, r *http.Request) {
	st, err := s.source.Bridge(mux.Vars(r)["bridge"])
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handlePorts(w http.ResponseWriter, r *http.Request) {
	ports, err := s.source.Ports(mux.Vars(r)["bridge"])
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, ports)
}

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	mstid, err := strconv.ParseUint(vars["mstid"], 10, 16)
	if err != nil || !protocol.MSTID(mstid).Valid() {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad mstid"})
		return
	}
	st, err := s.source.Tree(vars["bridge"], protocol.MSTID(mstid))
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Publish fans an event out to every connected stream client. Slow
// clients are dropped rather than allowed to block the daemon.
func (s *Server) Publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	s.wsMu.RLock()
	defer s.wsMu.RUnlock()
	for c := range s.wsClients {
		select {
		case c.send <- ev:
		default:
			s.log.Debug("dropping slow event stream client")
			go c.conn.Close()
		}
	}
}
