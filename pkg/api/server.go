package api

import (
	"encoding/json"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/HexCommunity/solo/pkg/orders"
)

// Server exposes the engine's query, admin, and event-stream surfaces.
type Server struct {
	engine *orders.Engine
	router *mux.Router
	hub    *Hub
	logger *zap.Logger
}

// NewServer creates an API server over an engine.
func NewServer(engine *orders.Engine, logger *zap.Logger) *Server {
	s := &Server{
		engine: engine,
		router: mux.NewRouter(),
		hub:    NewHub(engine.Events(), logger),
		logger: logger,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/orders/{hash}", s.handleGetOrderState).Methods("GET")
	api.HandleFunc("/orders/states", s.handleGetOrderStates).Methods("POST")

	api.HandleFunc("/admin/shutdown", s.handleShutDown).Methods("POST")
	api.HandleFunc("/admin/startup", s.handleStartUp).Methods("POST")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start runs the hub and serves HTTP until the listener fails.
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	})

	s.logger.Info("api server starting", zap.String("addr", addr))
	return http.ListenAndServe(addr, c.Handler(s.router))
}

func (s *Server) handleGetOrderState(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	raw := vars["hash"]
	if len(common.FromHex(raw)) != common.HashLength {
		writeError(w, http.StatusBadRequest, "invalid order hash")
		return
	}

	hash := common.HexToHash(raw)
	states, err := s.engine.GetOrderStates([]common.Hash{hash})
	if err != nil {
		s.logger.Error("order state read failed", zap.String("hash", hash.Hex()), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read order state")
		return
	}
	state := states[0]
	writeJSON(w, http.StatusOK, OrderStateResponse{
		Hash:         hash.Hex(),
		Status:       state.Status.String(),
		FilledAmount: state.FilledAmount.String(),
	})
}

func (s *Server) handleGetOrderStates(w http.ResponseWriter, r *http.Request) {
	var req OrderStatesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	hashes := make([]common.Hash, 0, len(req.Hashes))
	for _, raw := range req.Hashes {
		if len(common.FromHex(raw)) != common.HashLength {
			writeError(w, http.StatusBadRequest, "invalid order hash: "+raw)
			return
		}
		hashes = append(hashes, common.HexToHash(raw))
	}

	states, err := s.engine.GetOrderStates(hashes)
	if err != nil {
		s.logger.Error("order state read failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read order state")
		return
	}
	resp := make([]OrderStateResponse, len(states))
	for i, state := range states {
		resp[i] = OrderStateResponse{
			Hash:         hashes[i].Hex(),
			Status:       state.Status.String(),
			FilledAmount: state.FilledAmount.String(),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleShutDown(w http.ResponseWriter, r *http.Request) {
	s.handleAdmin(w, r, s.engine.ShutDown)
}

func (s *Server) handleStartUp(w http.ResponseWriter, r *http.Request) {
	s.handleAdmin(w, r, s.engine.StartUp)
}

func (s *Server) handleAdmin(w http.ResponseWriter, r *http.Request, op func(common.Address) error) {
	var req AdminRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !common.IsHexAddress(req.Caller) {
		writeError(w, http.StatusBadRequest, "invalid caller address")
		return
	}

	if err := op(common.HexToAddress(req.Caller)); err != nil {
		writeError(w, http.StatusForbidden, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Operational: s.engine.Operational()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Operational: s.engine.Operational()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
