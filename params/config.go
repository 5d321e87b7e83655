package params

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Server struct {
	// ListenAddr is the HTTP bind address for the REST/WebSocket API.
	ListenAddr string
	// AllowedOrigins for CORS. "*" allows any origin (demo default).
	AllowedOrigins []string
}

type Keys struct {
	// Dir holds the confidential-value key material on disk.
	Dir string
}

type Book struct {
	// ConfidentialDefault decides whether the book starts in confidential
	// mode. Only takes effect when key material is available at startup.
	ConfidentialDefault bool
}

type Config struct {
	Server Server
	Keys   Keys
	Book   Book
	// LogFile receives structured logs in addition to stdout.
	LogFile string
	// FillJournal is the pebble directory for the append-only fill journal.
	// Empty disables journaling.
	FillJournal string
}

func Default() Config {
	return Config{
		Server: Server{
			ListenAddr:     ":8080",
			AllowedOrigins: []string{"*"},
		},
		Keys: Keys{
			Dir: "keys",
		},
		Book: Book{
			ConfidentialDefault: true,
		},
		LogFile:     "data/node.log",
		FillJournal: "data/fills",
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load() // loads .env from current directory
	}

	if addr := os.Getenv("API_ADDR"); addr != "" {
		cfg.Server.ListenAddr = addr
	}
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		cfg.Server.AllowedOrigins = strings.Split(origins, ",")
	}
	if dir := os.Getenv("KEYS_DIR"); dir != "" {
		cfg.Keys.Dir = dir
	}
	if v := os.Getenv("CONFIDENTIAL"); v != "" {
		cfg.Book.ConfidentialDefault = v == "true"
	}
	if f := os.Getenv("LOG_FILE"); f != "" {
		cfg.LogFile = f
	}
	if j := os.Getenv("FILL_JOURNAL"); j != "" {
		cfg.FillJournal = j
	}

	return cfg
}
