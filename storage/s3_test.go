package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 records requests and answers with canned status codes.
type fakeS3 struct {
	mu       sync.Mutex
	requests []string
	bodies   map[string]string
	status   map[string]int // "METHOD /path" -> status
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	key := r.Method + " " + r.URL.Path

	f.mu.Lock()
	f.requests = append(f.requests, key)
	if r.Method == http.MethodPut {
		f.bodies[r.URL.Path] = string(body)
	}
	status, ok := f.status[key]
	f.mu.Unlock()

	if !ok {
		status = http.StatusOK
		if r.Method == http.MethodDelete {
			status = http.StatusNoContent
		}
	}
	w.WriteHeader(status)
}

func newTestStore(t *testing.T, f *fakeS3) *S3Store {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	store, err := NewS3Store(context.Background(), Config{
		Endpoint:  srv.URL,
		Region:    "us-east-1",
		AccessKey: "key",
		SecretKey: "secret",
		Bucket:    "audio",
	})
	require.NoError(t, err)
	return store
}

func TestS3Store_PutReturnsPublicURL(t *testing.T) {
	f := &fakeS3{bodies: map[string]string{}, status: map[string]int{}}
	store := newTestStore(t, f)

	url, err := store.Put(context.Background(), "uploads/s1/hello.mp3", []byte("ID3"), "audio/mpeg")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(url, "/audio/uploads/s1/hello.mp3"), url)

	key, ok := store.KeyFromURL(url)
	assert.True(t, ok)
	assert.Equal(t, "uploads/s1/hello.mp3", key)

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Contains(t, f.requests, "PUT /audio/uploads/s1/hello.mp3")
}

func TestS3Store_PutFailureIsWrapped(t *testing.T) {
	f := &fakeS3{bodies: map[string]string{}, status: map[string]int{
		"PUT /audio/denied.mp3": http.StatusForbidden,
	}}
	store := newTestStore(t, f)

	_, err := store.Put(context.Background(), "denied.mp3", []byte("x"), "audio/mpeg")
	require.Error(t, err)

	var serr *Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "put", serr.Op)
	assert.Equal(t, "denied.mp3", serr.Key)
}

func TestS3Store_ExistsAndDelete(t *testing.T) {
	f := &fakeS3{bodies: map[string]string{}, status: map[string]int{
		"HEAD /audio/missing.mp3": http.StatusNotFound,
	}}
	store := newTestStore(t, f)
	ctx := context.Background()

	ok, err := store.Exists(ctx, "present.mp3")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Exists(ctx, "missing.mp3")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Delete(ctx, "present.mp3"))
}

func TestS3Store_EnsureBucketCreatesMissing(t *testing.T) {
	f := &fakeS3{bodies: map[string]string{}, status: map[string]int{
		"HEAD /audio": http.StatusNotFound,
	}}
	store := newTestStore(t, f)

	require.NoError(t, store.EnsureBucket(context.Background()))

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Contains(t, f.requests, "PUT /audio")
}

func TestS3Store_SignedURL(t *testing.T) {
	f := &fakeS3{bodies: map[string]string{}, status: map[string]int{}}
	store := newTestStore(t, f)

	signed, err := store.SignedURL(context.Background(), "speeches/a.mp3", 15*time.Minute)
	require.NoError(t, err)
	assert.Contains(t, signed, "/audio/speeches/a.mp3")
	assert.Contains(t, signed, "X-Amz-Signature=")
	assert.Contains(t, signed, "X-Amz-Expires=900")
}

func TestKeyFromURL_ForeignURL(t *testing.T) {
	store := &S3Store{publicBaseURL: "https://cdn.example.com"}
	_, ok := store.KeyFromURL("https://elsewhere.example.com/a.mp3")
	assert.False(t, ok)

	key, ok := store.KeyFromURL("https://cdn.example.com/speeches/my%20file.mp3")
	assert.True(t, ok)
	assert.Equal(t, "speeches/my file.mp3", key)
}

func TestPublicBase(t *testing.T) {
	assert.Equal(t, "https://cdn.example.com", publicBase(Config{PublicBaseURL: "https://cdn.example.com/"}, "auto"))
	assert.Equal(t, "http://minio:9000/audio", publicBase(Config{Endpoint: "http://minio:9000", Bucket: "audio"}, "auto"))
	assert.Equal(t, "https://audio.s3.eu-west-1.amazonaws.com", publicBase(Config{Bucket: "audio"}, "eu-west-1"))
}
