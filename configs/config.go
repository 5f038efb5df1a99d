package config

import "os"

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
	PublicURL  string
}

type Config struct {
	XClientID     string
	XClientSecret string
	XRedirectURI  string
	XAuthURL      string
	XTokenURL     string
	XAPIBaseURL   string

	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string

	PostgresURI string
	RedisURI    string
	FrontendURL string
	R2          R2

	// EncryptionKey is the hex-encoded 256-bit key for the credential vault.
	EncryptionKey string
	JWTSecret     string
	CookieName    string
}

func LoadConfig() *Config {
	return &Config{
		XClientID:     getEnv("X_CLIENT_ID", ""),
		XClientSecret: getEnv("X_CLIENT_SECRET", ""),
		XRedirectURI:  getEnv("X_REDIRECT_URI", ""),
		XAuthURL:      getEnv("X_AUTH_URL", "https://twitter.com/i/oauth2/authorize"),
		XTokenURL:     getEnv("X_TOKEN_URL", "https://api.twitter.com/2/oauth2/token"),
		XAPIBaseURL:   getEnv("X_API_BASE_URL", "https://api.twitter.com"),

		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		GeminiModel:   getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		GeminiBaseURL: getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),

		PostgresURI: getEnv("POSTGRES_URI", ""),
		RedisURI:    getEnv("REDIS_URI", ""),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:5173"),
		R2: R2{
			AccountID:  getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:  getEnv("R2_ACCESS_KEY", ""),
			SecretKey:  getEnv("R2_SECRET_KEY", ""),
			BucketName: getEnv("R2_BUCKET_NAME", ""),
			PublicURL:  getEnv("R2_PUBLIC_URL", ""),
		},

		EncryptionKey: getEnv("ENCRYPTION_KEY", ""),
		JWTSecret:     getEnv("JWT_SECRET", ""),
		CookieName:    getEnv("COOKIE_NAME", "postpilot_session"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
