package config

import (
	"log"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	MySQLDSN        string
	RedisURL        string
	JWTSecret       string
	Port            string
	GeminiAPIKey    string
	FactCheckAPIKey string
	AllowedOrigins  []string
	EnableSSL       bool
	SSLCert         string
	SSLKey          string
	PollInterval    int
	VerifyRate      int
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		if def == "" {
			log.Fatalf("missing env %s", key)
		}
		return def
	}
	return v
}

func Load() Config {
	pi, _ := strconv.Atoi(getenv("POLL_INTERVAL", "300"))
	vr, _ := strconv.Atoi(getenv("VERIFY_RATE_LIMIT", "10"))
	return Config{
		MySQLDSN:  getenv("MYSQL_DSN", "factcheck:factcheck@tcp(localhost:3306)/factcheck?parseTime=true"),
		RedisURL:  getenv("REDIS_URL", "redis://localhost:6379/0"),
		JWTSecret: getenv("JWT_SECRET", ""),
		Port:      getenv("PORT", "8080"),
		// Missing GEMINI_API_KEY is surfaced per-request, not at boot, so the
		// social endpoints stay up when verification is unconfigured.
		GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
		FactCheckAPIKey: os.Getenv("FACT_CHECK_API_KEY"),
		AllowedOrigins:  strings.Split(getenv("ALLOWED_ORIGINS", "http://localhost:3000"), ","),
		EnableSSL:       os.Getenv("ENABLE_SSL") == "true",
		SSLCert:         os.Getenv("SSL_CERT"),
		SSLKey:          os.Getenv("SSL_KEY"),
		PollInterval:    pi,
		VerifyRate:      vr,
	}
}
