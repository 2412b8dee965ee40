package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"speech-practice/models"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a private in-memory SQLite database with foreign keys on.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func ptr[T any](v T) *T { return &v }

func seedUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()
	u := &models.User{Email: email, Name: "Learner", PasswordHash: ptr("hash")}
	require.NoError(t, db.Create(u).Error)
	return u
}

func seedTag(t *testing.T, db *gorm.DB, name string) *models.Tag {
	t.Helper()
	tag := &models.Tag{Name: name, Category: "topic"}
	require.NoError(t, db.Create(tag).Error)
	return tag
}

func seedSpeech(t *testing.T, db *gorm.DB, level models.Level, st models.SpeechType, tags ...*models.Tag) *models.Speech {
	t.Helper()
	sp := &models.Speech{
		AudioURL: "https://cdn.example.com/speeches/" + uuid.NewString() + ".mp3",
		Text:     "How are you today?",
		Level:    level,
		Type:     st,
	}
	for _, tag := range tags {
		sp.Tags = append(sp.Tags, *tag)
	}
	require.NoError(t, db.Create(sp).Error)
	return sp
}

// fakeStore is an in-memory ObjectStore. Keys listed in failKeys (matched by
// suffix) fail on Put.
type fakeStore struct {
	mu       sync.Mutex
	objects  map[string][]byte
	deleted  []string
	failKeys []string
	puts     int
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}}
}

const fakeBaseURL = "https://cdn.example.com"

func (f *fakeStore) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts++
	for _, k := range f.failKeys {
		if strings.HasSuffix(key, k) {
			return "", errors.New("bucket unavailable")
		}
	}
	f.objects[key] = data
	return fakeBaseURL + "/" + key, nil
}

func (f *fakeStore) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	return fmt.Sprintf("%s/%s?signed=1&ttl=%d", fakeBaseURL, key, int(ttl.Seconds())), nil
}

func (f *fakeStore) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeStore) Exists(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[key]
	return ok, nil
}

func (f *fakeStore) KeyFromURL(rawURL string) (string, bool) {
	if !strings.HasPrefix(rawURL, fakeBaseURL+"/") {
		return "", false
	}
	return strings.TrimPrefix(rawURL, fakeBaseURL+"/"), true
}

func (f *fakeStore) Ping(context.Context) error { return nil }

func (f *fakeStore) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.objects))
	for k := range f.objects {
		out = append(out, k)
	}
	return out
}
