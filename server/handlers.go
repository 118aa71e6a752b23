package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"MuseFM/config"
	"MuseFM/core/auth"
	"MuseFM/core/library"
	"MuseFM/logger"
	"MuseFM/repository"
)

// APIHandler 处理所有API请求
type APIHandler struct {
	trackRepo  repository.TrackRepository
	scanner    *library.Scanner
	reconciler *library.Reconciler
	cfg        *config.Config

	// adminHash is the bcrypt hash of the configured admin password,
	// computed once at startup.
	adminHash string

	// scanMu serializes scan requests; overlapping scans would race on
	// the reconciler's read-diff-write cycle.
	scanMu sync.Mutex

	progress *scanBroadcaster
}

// NewAPIHandler 创建新的API处理器
func NewAPIHandler(
	trackRepo repository.TrackRepository,
	scanner *library.Scanner,
	reconciler *library.Reconciler,
	cfg *config.Config,
) *APIHandler {
	h := &APIHandler{
		trackRepo:  trackRepo,
		scanner:    scanner,
		reconciler: reconciler,
		cfg:        cfg,
		progress:   newScanBroadcaster(),
	}

	if cfg.AdminPassword != "" {
		hash, err := auth.HashPassword(cfg.AdminPassword)
		if err != nil {
			logger.Fatal("管理员密码哈希失败", logger.ErrorField(err))
		}
		h.adminHash = hash
	}

	scanner.OnProgress(h.progress.Broadcast)
	return h
}

// respondJSON writes a JSON body with the given status.
func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("写入响应失败", logger.ErrorField(err))
	}
}

// respondError writes the API error envelope: {"success": false, "error": msg}.
func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]any{
		"success": false,
		"error":   msg,
	})
}

// LoginHandler 管理员登录，签发维护端点使用的JWT
func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	if h.adminHash == "" {
		respondError(w, http.StatusServiceUnavailable, "Admin login is not configured")
		return
	}
	if req.Username != h.cfg.AdminUser || !auth.CheckPasswordHash(req.Password, h.adminHash) {
		logger.Warn("登录失败", logger.String("username", req.Username))
		respondError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	token, err := auth.GenerateToken(req.Username, h.cfg.JWTSecret)
	if err != nil {
		logger.Error("签发令牌失败", logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Failed to issue token")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"token":   token,
	})
}

// AuthMiddleware is a middleware function that checks for a valid JWT token
// on maintenance endpoints (scan, title edits, cleanup).
func (h *APIHandler) AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			respondError(w, http.StatusUnauthorized, "Authorization header is required")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			respondError(w, http.StatusUnauthorized, "Invalid authorization header format")
			return
		}

		if _, err := auth.ParseToken(parts[1], h.cfg.JWTSecret); err != nil {
			respondError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		next.ServeHTTP(w, r)
	}
}
