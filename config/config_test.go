package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("S3_BUCKET_NAME", "")
	t.Setenv("JWT_EXPIRATION_MINUTES", "")
	t.Setenv("SPEECH_API_TIMEOUT", "")
	t.Setenv("ALLOWED_ORIGINS", "")

	cfg := Load()

	assert.Equal(t, "8000", cfg.Port)
	assert.Equal(t, "english-practice-audio", cfg.S3BucketName)
	assert.Equal(t, 10080*time.Minute, cfg.JWTExpiration)
	assert.Equal(t, 30*24*time.Hour, cfg.RefreshTokenTTL)
	assert.Equal(t, 10*time.Second, cfg.SpeechAPITimeout)
	assert.Equal(t, 24*time.Hour, cfg.UploadSessionTTL)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.AllowedOrigins)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("JWT_EXPIRATION_MINUTES", "15")
	t.Setenv("S3_CREATE_BUCKET", "true")
	t.Setenv("SPEECH_API_TIMEOUT", "not-a-number")

	cfg := Load()

	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 15*time.Minute, cfg.JWTExpiration)
	assert.True(t, cfg.S3CreateBucket)
	assert.Equal(t, 10*time.Second, cfg.SpeechAPITimeout)
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
	assert.Contains(t, err.Error(), "JWT_SECRET_KEY")

	cfg = &Config{DatabaseURL: "postgres://x", JWTSecretKey: "s", S3AccessKey: "a", S3SecretKey: "b"}
	assert.NoError(t, cfg.Validate())
}
