package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the client and the reference server.
// It follows the 12-factor app methodology by prioritizing environment
// variables.
type Config struct {
	AppMode       string
	APIBaseURL    string
	SocketURL     string
	TypingTimeout time.Duration

	// Reference server settings.
	ServerPort   string
	JWTSecret    string
	JWTExpiryMin int
}

// LoadConfig loads configuration from environment variables. Defaults
// target a locally running reference server.
func LoadConfig() *Config {
	return &Config{
		AppMode:       getEnv("APP_MODE", "development"),
		APIBaseURL:    getEnv("API_BASE_URL", "http://localhost:5000"),
		SocketURL:     getEnv("SOCKET_URL", "ws://localhost:5000/ws"),
		TypingTimeout: time.Duration(getEnvAsInt("TYPING_TIMEOUT_MS", 1000)) * time.Millisecond,
		ServerPort:    getEnv("SERVER_PORT", "5000"),
		JWTSecret:     getEnv("JWT_SECRET", "change-me"),
		JWTExpiryMin:  getEnvAsInt("JWT_EXPIRY_MIN", 60),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}
