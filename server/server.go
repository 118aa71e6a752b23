package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"MuseFM/config"
	"MuseFM/core/library"
	"MuseFM/core/watch"
	"MuseFM/db"
	"MuseFM/logger"
	"MuseFM/repository"

	"github.com/gorilla/mux"
)

// Start initializes and starts the HTTP server.
func Start() {
	cfg := config.Load()

	logger.InitLogger(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		OutputPath: cfg.LogOutputPath,
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	})

	// 设置服务器超时。流式传输可能持续很久，写超时放宽。
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	// Connect to the database
	if err := db.ConnectDB(cfg); err != nil {
		logger.Fatal("Failed to connect to database", logger.ErrorField(err))
	}
	defer db.DB.Close()

	// Connect to Redis. The cache degrades gracefully without it.
	if err := db.ConnectRedis(cfg); err != nil {
		logger.Warn("Redis unavailable, caching disabled", logger.ErrorField(err))
	} else {
		defer db.CloseRedis()
		logger.Info("Successfully connected to Redis")
	}

	// Initialize database schema
	if err := db.InitDB(); err != nil {
		logger.Fatal("Failed to initialize database", logger.ErrorField(err))
	}

	trackRepo := repository.NewMySQLTrackRepository()
	parser := library.NewM3UParser(cfg.PlaylistsRoot)
	reconciler := library.NewReconciler(trackRepo)
	scanner := library.NewScanner(parser, reconciler)

	// 初始化处理器
	apiHandler := NewAPIHandler(trackRepo, scanner, reconciler, cfg)

	// 使用 gorilla/mux 创建路由器
	router := mux.NewRouter()

	// 添加 CORS 中间件
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, HEAD")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Range")
			w.Header().Set("Access-Control-Expose-Headers", "Content-Length, Content-Range")
			w.Header().Set("Access-Control-Max-Age", "86400") // 24 hours

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	})

	// 认证相关的API端点
	router.HandleFunc("/api/auth/login", apiHandler.LoginHandler).Methods(http.MethodPost)

	// 音乐库API端点
	router.HandleFunc("/api/music/tracks", apiHandler.GetTracksHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/music/artists", apiHandler.GetArtistsHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/music/stream/{id}", apiHandler.StreamTrackHandler).Methods(http.MethodGet, http.MethodHead)
	router.HandleFunc("/api/music/cover/{artist}", apiHandler.CoverHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/music/debug/{id}", apiHandler.DebugTrackHandler).Methods(http.MethodGet)

	// 维护端点需要管理员令牌
	router.HandleFunc("/api/music/scan", apiHandler.AuthMiddleware(apiHandler.ScanHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/music/scan/last", apiHandler.LastScanHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/music/scan/ws", apiHandler.ScanProgressWSHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/music/tracks/batch-clean", apiHandler.AuthMiddleware(apiHandler.BatchCleanTitlesHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/music/tracks/{id}/title", apiHandler.AuthMiddleware(apiHandler.UpdateTitleHandler)).Methods(http.MethodPut)

	server.Handler = router

	// 创建一个通道来接收操作系统信号
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	// 监听播放列表目录变更，自动触发扫描
	watchCtx, cancelWatch := context.WithCancel(context.Background())
	defer cancelWatch()
	if cfg.WatchEnabled {
		watcher := watch.NewWatcher(cfg.PlaylistsRoot,
			time.Duration(cfg.WatchDebounceMs)*time.Millisecond,
			apiHandler.RescanForWatcher)
		go func() {
			if err := watcher.Run(watchCtx); err != nil && err != context.Canceled {
				logger.Error("播放列表监听退出", logger.ErrorField(err))
			}
		}()
	}

	// 在goroutine中启动服务器
	go func() {
		logger.Info("Server starting",
			logger.String("addr", server.Addr),
			logger.String("playlistsRoot", cfg.PlaylistsRoot))

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", logger.ErrorField(err))
		}
	}()

	// 等待中断信号
	<-stop
	logger.Info("Shutting down server...")
	cancelWatch()

	// 创建一个5秒超时的上下文
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 优雅关闭服务器
	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", logger.ErrorField(err))
	}

	logger.Info("Server stopped")
}
