// Package artifact keeps finished recordings behind revocable handles.
package artifact

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrUnknown = errors.New("unknown artifact handle")
	ErrRevoked = errors.New("artifact handle revoked")
)

// Handle is a dereferenceable reference to one artifact.
type Handle string

// Artifact is an immutable encoded blob.
type Artifact struct {
	Data      []byte
	MimeType  string
	CreatedAt time.Time
}

// Size is the blob length in bytes.
func (a Artifact) Size() int {
	return len(a.Data)
}

// Store mints and revokes handles. Each handle is revoked exactly once.
type Store interface {
	Create(data []byte, mimeType string) Handle
	Revoke(h Handle) error
	Open(h Handle) (Artifact, error)
}

// MemoryStore keeps blobs in memory until their handle is revoked.
type MemoryStore struct {
	mu      sync.Mutex
	live    map[Handle]Artifact
	revoked map[Handle]struct{}
	now     func() time.Time

	// OnCreate and OnRevoke, if set, observe every new handle and every
	// successful revoke.
	OnCreate func(h Handle, size int)
	OnRevoke func(h Handle, size int)
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		live:    make(map[Handle]Artifact),
		revoked: make(map[Handle]struct{}),
		now:     time.Now,
	}
}

func (s *MemoryStore) Create(data []byte, mimeType string) Handle {
	h := Handle(uuid.NewString())
	s.mu.Lock()
	s.live[h] = Artifact{Data: data, MimeType: mimeType, CreatedAt: s.now()}
	s.mu.Unlock()

	if s.OnCreate != nil {
		s.OnCreate(h, len(data))
	}
	return h
}

// Revoke releases the blob. Revoking twice returns ErrRevoked and changes
// nothing.
func (s *MemoryStore) Revoke(h Handle) error {
	s.mu.Lock()
	a, ok := s.live[h]
	if !ok {
		_, gone := s.revoked[h]
		s.mu.Unlock()
		if gone {
			return ErrRevoked
		}
		return ErrUnknown
	}
	delete(s.live, h)
	s.revoked[h] = struct{}{}
	s.mu.Unlock()

	if s.OnRevoke != nil {
		s.OnRevoke(h, a.Size())
	}
	return nil
}

func (s *MemoryStore) Open(h Handle) (Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.live[h]; ok {
		return a, nil
	}
	if _, gone := s.revoked[h]; gone {
		return Artifact{}, ErrRevoked
	}
	return Artifact{}, ErrUnknown
}

// Live counts handles that have not been revoked yet.
func (s *MemoryStore) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}
