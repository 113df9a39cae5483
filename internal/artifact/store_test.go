package artifact

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateOpenRevoke(t *testing.T) {
	s := NewMemoryStore()
	var created, revoked []Handle
	s.OnCreate = func(h Handle, size int) {
		created = append(created, h)
		assert.Equal(t, 3, size)
	}
	s.OnRevoke = func(h Handle, size int) {
		revoked = append(revoked, h)
		assert.Equal(t, 3, size)
	}

	h := s.Create([]byte("abc"), "video/webm")
	require.NotEmpty(t, h)
	assert.Equal(t, 1, s.Live())
	assert.Equal(t, []Handle{h}, created)

	a, err := s.Open(h)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), a.Data)
	assert.Equal(t, "video/webm", a.MimeType)
	assert.False(t, a.CreatedAt.IsZero())

	require.NoError(t, s.Revoke(h))
	assert.Zero(t, s.Live())
	assert.Equal(t, []Handle{h}, revoked)

	_, err = s.Open(h)
	assert.ErrorIs(t, err, ErrRevoked)
}

func TestDoubleRevokeIsRejected(t *testing.T) {
	s := NewMemoryStore()
	calls := 0
	s.OnRevoke = func(Handle, int) { calls++ }

	h := s.Create(nil, "video/webm")
	require.NoError(t, s.Revoke(h))
	assert.ErrorIs(t, s.Revoke(h), ErrRevoked)
	assert.Equal(t, 1, calls)
}

func TestUnknownHandle(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Open("nope")
	assert.ErrorIs(t, err, ErrUnknown)
	assert.ErrorIs(t, s.Revoke("nope"), ErrUnknown)
}

func TestHandlesAreUnique(t *testing.T) {
	s := NewMemoryStore()
	seen := map[Handle]bool{}
	for i := 0; i < 100; i++ {
		h := s.Create([]byte{byte(i)}, "video/webm")
		assert.False(t, seen[h])
		seen[h] = true
	}
}
