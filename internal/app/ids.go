package app

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/dkeye/Rendezvous/internal/domain"
)

const DefaultMaxIDAttempts = 100

// IDSource yields raw candidate ids.
type IDSource func() uint32

// CryptoIDSource draws ids from crypto/rand so they cannot be predicted
// from earlier ones.
func CryptoIDSource() uint32 {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return binary.BigEndian.Uint32(b[:])
}

// LiveSet is the set of ids an allocation must avoid.
type LiveSet interface {
	Contains(id domain.SessionID) bool
}

// Allocator hands out session ids unique among the ids in its LiveSet.
// Ids are reused once their session is gone.
type Allocator struct {
	live        LiveSet
	next        IDSource
	maxAttempts int
}

func NewAllocator(live LiveSet, src IDSource) *Allocator {
	if src == nil {
		src = CryptoIDSource
	}
	return &Allocator{live: live, next: src, maxAttempts: DefaultMaxIDAttempts}
}

// WithMaxAttempts overrides the retry bound.
func (a *Allocator) WithMaxAttempts(n int) *Allocator {
	if n > 0 {
		a.maxAttempts = n
	}
	return a
}

func (a *Allocator) Allocate() (domain.SessionID, error) {
	for i := 0; i < a.maxAttempts; i++ {
		id := domain.SessionID(a.next())
		if id == domain.NoSession || a.live.Contains(id) {
			continue
		}
		return id, nil
	}
	return domain.NoSession, fmt.Errorf("%w after %d attempts", domain.ErrIDExhausted, a.maxAttempts)
}
