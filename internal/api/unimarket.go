package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/BabyPolarisu/unimarket/internal/config"
	"github.com/BabyPolarisu/unimarket/internal/database"
	"github.com/BabyPolarisu/unimarket/internal/server"
	"github.com/BabyPolarisu/unimarket/internal/stats"
	"github.com/gorilla/handlers"
	"github.com/teris-io/shortid"
)

type UniMarketApp struct {
	log   *log.Logger
	db    database.UniMarketRepository
	cs    *server.ChatServer
	stats stats.StatsProvider
	srv   *http.Server

	signingKey       []byte
	allowedOrigins   []string
	messagePageLimit int

	// generateShortId mints external room ids; overridable in tests.
	generateShortId func() (string, error)
}

func NewUniMarketApp(mux *http.ServeMux, logger *log.Logger, cs *server.ChatServer, db database.UniMarketRepository, su stats.StatsProvider, cfg *config.Config) *UniMarketApp {
	s := &UniMarketApp{
		log:              logger,
		db:               db,
		cs:               cs,
		stats:            su,
		signingKey:       cfg.SigningKey,
		allowedOrigins:   cfg.AllowedOrigins,
		messagePageLimit: cfg.MessagePageLimit,
		generateShortId:  shortid.Generate,
	}

	mux.HandleFunc("GET /healthz", s.healthCheck)
	mux.HandleFunc("POST /api/auth/register", s.createAccount)
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.HandleFunc("GET /api/auth/session", s.authMiddleware(s.session))
	mux.Handle("GET /api/auth/logout", s.authMiddleware(s.logout))
	mux.Handle("/api/account", s.authMiddleware(s.account))
	mux.Handle("POST /api/products", s.authMiddleware(s.createProduct))
	mux.HandleFunc("GET /api/products", s.listProducts)
	mux.Handle("GET /api/products/mine", s.authMiddleware(s.listMyProducts))
	mux.HandleFunc("GET /api/products/{id}", s.getProduct)
	mux.Handle("POST /api/products/{id}/chat", s.authMiddleware(s.startConversation))
	mux.Handle("GET /api/rooms", s.authMiddleware(s.listRooms))
	mux.Handle("DELETE /api/rooms", s.authMiddleware(s.deleteRoom))
	mux.Handle("POST /api/messages", s.authMiddleware(s.sendMessage))
	mux.Handle("GET /api/messages", s.authMiddleware(s.getMessages))
	mux.Handle("GET /api/notifications", s.authMiddleware(s.listNotifications))
	mux.Handle("GET /api/notifications/unread_count", s.authMiddleware(s.unreadNotificationCount))
	mux.Handle("GET /ws", s.authMiddleware(s.serveWs))

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	s.srv = &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	return s
}

func (s *UniMarketApp) Start() error {
	s.log.Printf("starting server on %s\n", s.srv.Addr)
	return s.srv.ListenAndServe()
}

func (s *UniMarketApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}

func (s *UniMarketApp) healthCheck(w http.ResponseWriter, _ *http.Request) {
	if err := s.db.Ping(); err != nil {
		s.log.Println("health check:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
