package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arthaus/photoshoot-bot/internal/models"
	"github.com/arthaus/photoshoot-bot/internal/service"
)

type Server struct {
	addr        string
	username    string
	password    string
	log         *slog.Logger
	accounts    *service.AccountService
	styles      *service.StyleService
	photoshoots *service.PhotoshootService
	payments    *service.PaymentService
	router      *chi.Mux
}

func NewServer(addr, username, password string, log *slog.Logger, accounts *service.AccountService, styles *service.StyleService, photoshoots *service.PhotoshootService, payments *service.PaymentService) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	s := &Server{
		addr:        addr,
		username:    username,
		password:    password,
		log:         log,
		accounts:    accounts,
		styles:      styles,
		photoshoots: photoshoots,
		payments:    payments,
		router:      r,
	}

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(protected chi.Router) {
		protected.Use(s.basicAuthMiddleware())
		protected.Route("/accounts", func(r chi.Router) {
			r.Get("/", s.handleListAccounts)
			r.Get("/search", s.handleSearchAccounts)
			r.Post("/{telegramID}/credits", s.handleAdjustCredits)
			r.Post("/{telegramID}/balance", s.handleAdjustBalance)
			r.Post("/{telegramID}/admin", s.handleSetAdmin)
		})
		protected.Route("/styles", func(r chi.Router) {
			r.Get("/", s.handleListStyles)
			r.Post("/", s.handleCreateStyle)
			r.Put("/{id}", s.handleUpdateStyle)
			r.Delete("/{id}", s.handleDeactivateStyle)
		})
		protected.Get("/report", s.handleReport)
	})
	return s
}

func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Error("admin shutdown error", "err", err)
		}
	}()

	s.log.Info("admin panel listening", "addr", s.addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("admin listen: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	page := parseQueryInt(r, "page", 1)
	pageSize := parseQueryInt(r, "page_size", 50)

	accounts, total, err := s.accounts.ListPage(r.Context(), zeroBasedPage(page), pageSize)
	if err != nil {
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"accounts":  accounts,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

func (s *Server) handleSearchAccounts(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		http.Error(w, "q required", http.StatusBadRequest)
		return
	}
	accounts, err := s.accounts.Search(r.Context(), query)
	if err != nil {
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, accounts)
}

type adjustRequest struct {
	Delta int `json:"delta"`
}

func (s *Server) handleAdjustCredits(w http.ResponseWriter, r *http.Request) {
	s.handleAdjust(w, r, s.accounts.AdjustCredits)
}

func (s *Server) handleAdjustBalance(w http.ResponseWriter, r *http.Request) {
	s.handleAdjust(w, r, s.accounts.AdjustBalance)
}

func (s *Server) handleAdjust(w http.ResponseWriter, r *http.Request, adjust func(context.Context, int64, int) (*models.Account, error)) {
	telegramID, err := parseID(chi.URLParam(r, "telegramID"))
	if err != nil {
		http.Error(w, "invalid telegram id", http.StatusBadRequest)
		return
	}
	var req adjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Delta == 0 {
		http.Error(w, "delta required", http.StatusBadRequest)
		return
	}
	account, err := adjust(r.Context(), telegramID, req.Delta)
	if err != nil {
		s.internalError(w, err)
		return
	}
	if account == nil {
		http.Error(w, "account not found", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, account)
}

type setAdminRequest struct {
	IsAdmin bool `json:"is_admin"`
}

func (s *Server) handleSetAdmin(w http.ResponseWriter, r *http.Request) {
	telegramID, err := parseID(chi.URLParam(r, "telegramID"))
	if err != nil {
		http.Error(w, "invalid telegram id", http.StatusBadRequest)
		return
	}
	var req setAdminRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	account, err := s.accounts.SetAdminFlag(r.Context(), telegramID, req.IsAdmin)
	if err != nil {
		if errors.Is(err, service.ErrSuperAdminImmutable) {
			http.Error(w, err.Error(), http.StatusForbidden)
			return
		}
		s.internalError(w, err)
		return
	}
	if account == nil {
		http.Error(w, "account not found", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, account)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	days := parseQueryInt(r, "days", 7)

	photoshoots, err := s.photoshoots.Report(r.Context(), days)
	if err != nil {
		s.internalError(w, err)
		return
	}
	payments, err := s.payments.Report(r.Context(), days)
	if err != nil {
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"photoshoots": photoshoots,
		"payments":    payments,
	})
}

func (s *Server) handleListStyles(w http.ResponseWriter, r *http.Request) {
	styles, err := s.styles.List(r.Context())
	if err != nil {
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, styles)
}

type styleRequest struct {
	Title         string `json:"title"`
	Description   string `json:"description"`
	Prompt        string `json:"prompt"`
	ImageFilename string `json:"image_filename"`
}

func (s *Server) handleCreateStyle(w http.ResponseWriter, r *http.Request) {
	var req styleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	style, err := s.styles.Create(r.Context(), service.CreateStyleInput{
		Title:         req.Title,
		Description:   req.Description,
		Prompt:        req.Prompt,
		ImageFilename: req.ImageFilename,
	})
	if err != nil {
		s.badRequest(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, style)
}

type styleUpdateRequest struct {
	Title         *string `json:"title"`
	Description   *string `json:"description"`
	Prompt        *string `json:"prompt"`
	ImageFilename *string `json:"image_filename"`
	IsActive      *bool   `json:"is_active"`
}

func (s *Server) handleUpdateStyle(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	var req styleUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	style, err := s.styles.Update(r.Context(), id, service.UpdateStyleInput{
		Title:         req.Title,
		Description:   req.Description,
		Prompt:        req.Prompt,
		ImageFilename: req.ImageFilename,
		IsActive:      req.IsActive,
	})
	if err != nil {
		s.badRequest(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, style)
}

func (s *Server) handleDeactivateStyle(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	if err := s.styles.Deactivate(r.Context(), id); err != nil {
		s.badRequest(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) basicAuthMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			if !ok || user != s.username || pass != s.password {
				w.Header().Set("WWW-Authenticate", `Basic realm="photoshoot-bot"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) badRequest(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), http.StatusBadRequest)
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	s.log.Error("admin handler error", "err", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func parseID(value string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(value), 10, 64)
}

// zeroBasedPage maps the API's 1-based page numbers onto the repository's
// 0-based pages, so the default request starts at offset zero.
func zeroBasedPage(page int) int {
	if page < 1 {
		return 0
	}
	return page - 1
}

func parseQueryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil || i <= 0 {
		return fallback
	}
	return i
}
