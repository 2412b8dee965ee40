package services

import (
	"sync"
	"time"
)

// DefaultUploadSessionTTL is how long an upload session stays importable.
const DefaultUploadSessionTTL = 24 * time.Hour

type UploadedFile struct {
	ID               string `json:"id"`
	OriginalFilename string `json:"original_filename"`
	StoredFilename   string `json:"stored_filename"`
	StorageKey       string `json:"-"`
	StorageURL       string `json:"storage_url"`
	SizeBytes        int64  `json:"size_bytes"`
}

// UploadSession maps the stored (disambiguated) filename to its file.
type UploadSession struct {
	ID        string
	CreatedAt time.Time
	Files     map[string]UploadedFile
}

// UploadRegistry keeps upload sessions in process memory between the upload
// call and the CSV import that references it. It does not survive restarts
// and is not shared between instances.
type UploadRegistry struct {
	mu       sync.RWMutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]*UploadSession
}

func NewUploadRegistry(ttl time.Duration) *UploadRegistry {
	if ttl <= 0 {
		ttl = DefaultUploadSessionTTL
	}
	return &UploadRegistry{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*UploadSession),
	}
}

// Put registers a fully built session. The file map must not be modified
// afterwards.
func (r *UploadRegistry) Put(s *UploadSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
}

// Get returns the session if it exists and has not expired.
func (r *UploadRegistry) Get(id string) (*UploadSession, bool) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok || r.expired(s) {
		return nil, false
	}
	return s, true
}

func (r *UploadRegistry) ExpiresAt(s *UploadSession) time.Time {
	return s.CreatedAt.Add(r.ttl)
}

func (r *UploadRegistry) expired(s *UploadSession) bool {
	return r.now().Sub(s.CreatedAt) > r.ttl
}

// Purge drops expired sessions and returns how many were removed.
func (r *UploadRegistry) Purge() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, s := range r.sessions {
		if r.expired(s) {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}

func (r *UploadRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
