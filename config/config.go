// config/config.go
package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is loaded once at startup and handed to constructors. Nothing reads
// the environment after Load returns.
type Config struct {
	Port           string
	DatabaseURL    string
	AllowedOrigins []string

	// Object storage (S3, R2 or MinIO)
	S3EndpointURL    string
	S3Region         string
	S3AccessKey      string
	S3SecretKey      string
	S3BucketName     string
	S3PublicBaseURL  string
	S3CreateBucket   bool
	SignedURLTTL     time.Duration
	UploadSessionTTL time.Duration

	// Pronunciation assessment
	AzureSpeechKey    string
	AzureSpeechRegion string
	SpeechLanguage    string
	SpeechAPITimeout  time.Duration

	// Tokens
	JWTSecretKey        string
	JWTExpiration       time.Duration
	RefreshTokenTTL     time.Duration
	GatewayServiceToken string
	GoogleTokenLogin    bool

	// Admin panel basic auth
	AdminUsername     string
	AdminPasswordHash string
}

// Load reads .env (when present) and the process environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	return &Config{
		Port:           getEnv("PORT", "8000"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),

		S3EndpointURL:    os.Getenv("S3_ENDPOINT_URL"),
		S3Region:         getEnv("S3_REGION", "auto"),
		S3AccessKey:      os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:      os.Getenv("S3_SECRET_KEY"),
		S3BucketName:     getEnv("S3_BUCKET_NAME", "english-practice-audio"),
		S3PublicBaseURL:  os.Getenv("S3_PUBLIC_BASE_URL"),
		S3CreateBucket:   getBool("S3_CREATE_BUCKET", false),
		SignedURLTTL:     getSeconds("S3_SIGNED_URL_TTL_SECONDS", 3600),
		UploadSessionTTL: getSeconds("UPLOAD_SESSION_TTL_SECONDS", 24*60*60),

		AzureSpeechKey:    os.Getenv("AZURE_SPEECH_KEY"),
		AzureSpeechRegion: getEnv("AZURE_SPEECH_REGION", "eastus"),
		SpeechLanguage:    getEnv("SPEECH_LANGUAGE", "en-US"),
		SpeechAPITimeout:  getSeconds("SPEECH_API_TIMEOUT", 10),

		JWTSecretKey:        os.Getenv("JWT_SECRET_KEY"),
		JWTExpiration:       time.Duration(getInt("JWT_EXPIRATION_MINUTES", 10080)) * time.Minute,
		RefreshTokenTTL:     time.Duration(getInt("REFRESH_TOKEN_EXPIRATION_DAYS", 30)) * 24 * time.Hour,
		GatewayServiceToken: os.Getenv("GATEWAY_SERVICE_TOKEN"),
		GoogleTokenLogin:    getBool("GOOGLE_TOKEN_LOGIN", true),

		AdminUsername:     getEnv("ADMIN_USERNAME", "admin"),
		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
	}
}

// Validate reports the settings `serve` cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL environment variable not set"))
	}
	if c.JWTSecretKey == "" {
		errs = append(errs, errors.New("JWT_SECRET_KEY environment variable not set"))
	}
	if c.S3AccessKey == "" || c.S3SecretKey == "" {
		errs = append(errs, errors.New("S3_ACCESS_KEY and S3_SECRET_KEY must be set"))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("⚠️  [Config] %s=%q is not an integer, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getSeconds(key string, fallback int) time.Duration {
	return time.Duration(getInt(key, fallback)) * time.Second
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
