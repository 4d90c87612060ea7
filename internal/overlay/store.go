package overlay

import "sync"

// Store is the content-addressed overlay store. DerivedOverlays are
// immutable once inserted and keyed by the SHA-256 of their original
// bytes, so two uploads with identical content share one artifact.
type Store struct {
	mu    sync.RWMutex
	byHash map[string]*DerivedOverlay
	// byID maps a caller-facing, session-prefixed overlay id to the
	// content hash that actually identifies the stored artifact.
	byID map[string]string
}

// NewStore builds an empty overlay store.
func NewStore() *Store {
	return &Store{
		byHash: make(map[string]*DerivedOverlay),
		byID:   make(map[string]string),
	}
}

// putOrGet inserts overlay if its hash isn't already present,
// otherwise returns the existing artifact for that hash. Either way
// it records overlayID as an alias to the content hash.
func (s *Store) putOrGet(overlayID string, overlay *DerivedOverlay) *DerivedOverlay {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.byHash[overlay.ContentSHA256]
	if !ok {
		s.byHash[overlay.ContentSHA256] = overlay
		existing = overlay
	}
	s.byID[overlayID] = existing.ContentSHA256
	return existing
}

// Get resolves overlayID to its stored artifact.
func (s *Store) Get(overlayID string) (*DerivedOverlay, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hash, ok := s.byID[overlayID]
	if !ok {
		return nil, false
	}
	overlay, ok := s.byHash[hash]
	return overlay, ok
}
