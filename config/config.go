package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config stores the application configuration.
type Config struct {
	ServerPort string

	// PlaylistsRoot is the directory holding one .m3u file per artist.
	PlaylistsRoot string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Redis配置
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	CacheTTL      int // seconds, for the artist index cache

	// 管理端认证
	JWTSecret     string
	AdminUser     string
	AdminPassword string

	// 监听播放列表目录，变更后自动重新扫描
	WatchEnabled    bool
	WatchDebounceMs int

	LogLevel      string
	LogOutputPath string
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvBool gets an environment variable as bool or returns a default value.
func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// Attempt to load .env file. godotenv.Load() will not override existing env vars.
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found or error loading .env, relying on existing environment variables and defaults.")
	}

	return &Config{
		ServerPort: getEnv("SERVER_PORT", "8080"),

		PlaylistsRoot: getEnv("PLAYLISTS_ROOT", "playlists"),

		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"), // For password, better not to have a hardcoded default
		DBName:     getEnv("DB_NAME", "musefm"),

		// Redis配置，使用默认值
		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""), // 默认无密码
		RedisDB:       getEnvInt("REDIS_DB", 0),
		CacheTTL:      getEnvInt("CACHE_TTL", 300),

		JWTSecret:     getEnv("JWT_SECRET", "musefm-dev-secret"),
		AdminUser:     getEnv("ADMIN_USER", "admin"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),

		WatchEnabled:    getEnvBool("WATCH_ENABLED", false),
		WatchDebounceMs: getEnvInt("WATCH_DEBOUNCE_MS", 2000),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogOutputPath: getEnv("LOG_OUTPUT_PATH", ""),
	}
}
