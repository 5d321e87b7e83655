package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/veillabs/veilbook/pkg/book"
	"github.com/veillabs/veilbook/pkg/confidential"
	"github.com/veillabs/veilbook/pkg/storage"
)

// Server exposes the matching engine over REST and WebSocket.
type Server struct {
	book    *book.Book
	svc     *confidential.ECIESService
	journal *storage.FillJournal // optional, truncated on reset
	router  *mux.Router
	hub     *Hub
	log     *zap.SugaredLogger
}

// NewServer wires the handlers. journal may be nil when fill journaling is
// disabled.
func NewServer(b *book.Book, svc *confidential.ECIESService, journal *storage.FillJournal, log *zap.SugaredLogger) *Server {
	s := &Server{
		book:    b,
		svc:     svc,
		journal: journal,
		router:  mux.NewRouter(),
		hub:     NewHub(log),
		log:     log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// Order management
	s.router.HandleFunc("/orders", s.handleGetOrders).Methods("GET")
	s.router.HandleFunc("/orders", s.handleSubmitOrder).Methods("POST")
	s.router.HandleFunc("/market-buy", s.handleMarketBuy).Methods("POST")
	s.router.HandleFunc("/market-sell", s.handleMarketSell).Methods("POST")
	s.router.HandleFunc("/fills", s.handleGetFills).Methods("GET")

	// Key management
	s.router.HandleFunc("/generate-keys", s.handleGenerateKeys).Methods("POST")

	// Configuration
	s.router.HandleFunc("/config", s.handleGetConfig).Methods("GET")
	s.router.HandleFunc("/config", s.handleUpdateConfig).Methods("POST")

	s.router.HandleFunc("/reset", s.handleReset).Methods("POST")
	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Handler returns the full HTTP handler including CORS, for tests and
// embedding.
func (s *Server) Handler(allowedOrigins []string) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(s.router)
}

// Start runs the WebSocket hub and serves HTTP on addr.
func (s *Server) Start(addr string, allowedOrigins []string) error {
	go s.hub.Run()
	s.log.Infow("api_server_starting", "addr", addr)
	return http.ListenAndServe(addr, s.Handler(allowedOrigins))
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleGetOrders(w http.ResponseWriter, r *http.Request) {
	// A confidential book is decrypted for display; the stored orders stay
	// sealed.
	if s.book.Confidential() {
		bids, asks, err := s.book.RenderPlaintext()
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to decrypt orders: "+err.Error())
			return
		}
		respondJSON(w, OrdersResponse{Bids: bids, Asks: asks})
		return
	}

	bids, asks := s.book.Orders()
	respondJSON(w, OrdersResponse{Bids: bids, Asks: asks})
}

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	side, err := book.ParseSide(req.Side)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	order, err := s.book.Submit(side, req.Price, req.Quantity, req.Owner)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.broadcastBook()
	respondJSON(w, SubmitResponse{Success: true, ID: order.ID, IsEncrypted: order.Confidential})
}

func (s *Server) handleMarketBuy(w http.ResponseWriter, r *http.Request) {
	s.handleMarketOrder(w, r, s.book.MarketBuy, "no matching sell orders available")
}

func (s *Server) handleMarketSell(w http.ResponseWriter, r *http.Request) {
	s.handleMarketOrder(w, r, s.book.MarketSell, "no matching buy orders available")
}

func (s *Server) handleMarketOrder(w http.ResponseWriter, r *http.Request, submit func(uint32, string) (*book.Order, error), noLiquidityMsg string) {
	var req MarketOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	order, err := submit(req.Quantity, req.Owner)
	if errors.Is(err, book.ErrNoLiquidity) {
		respondError(w, http.StatusBadRequest, noLiquidityMsg)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.broadcastBook()
	respondJSON(w, SubmitResponse{Success: true, ID: order.ID, IsEncrypted: order.Confidential})
}

func (s *Server) handleGetFills(w http.ResponseWriter, r *http.Request) {
	fills := s.book.Fills()
	if fills == nil {
		fills = []book.Fill{}
	}
	respondJSON(w, fills)
}

func (s *Server) handleGenerateKeys(w http.ResponseWriter, r *http.Request) {
	if s.svc == nil {
		respondError(w, http.StatusInternalServerError, "no confidential value service configured")
		return
	}
	if err := s.svc.Generate(); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to generate keys: "+err.Error())
		return
	}
	s.log.Infow("keys_generated", "public_key", s.svc.PublicKeyHex())
	respondJSON(w, MessageResponse{Success: true, Message: "key material generated"})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, ConfigResponse{Confidential: s.book.Confidential()})
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var req ConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := s.book.SetConfidential(req.Confidential); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.log.Infow("config_updated", "confidential", req.Confidential)
	respondJSON(w, ConfigResponse{Confidential: req.Confidential})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.book.Reset()
	if s.journal != nil {
		if err := s.journal.Truncate(); err != nil {
			s.log.Warnw("fill_journal_truncate_failed", "err", err)
		}
	}
	s.broadcastBook()
	respondJSON(w, ResetResponse{Success: true, Confidential: s.book.Confidential()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Broadcast Methods
// ==============================

// BroadcastFill publishes a fill on the "fills" channel. Wired as a book
// fill hook by the hosting process.
func (s *Server) BroadcastFill(f book.Fill) {
	s.hub.BroadcastToChannel("fills", FillUpdate{Type: "fill", Fill: f})
}

func (s *Server) broadcastBook() {
	bids, asks := s.book.Orders()
	s.hub.BroadcastToChannel("book", BookUpdate{Type: "book", Bids: bids, Asks: asks})
}

// ==============================
// Helper Functions
// ==============================

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Success: false, Error: msg})
}
