package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PasswordHasher - контракт auth.PasswordHasher
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) bool
}

// timedHasher замеряет bcrypt: рост латентности - первый признак,
// что cost factor слишком высок для железа
type timedHasher struct {
	next PasswordHasher
	obs  prometheus.Observer
}

// NewTimedHasher оборачивает хэшер гистограммой. obs == nil - без замеров.
func NewTimedHasher(next PasswordHasher, obs prometheus.Observer) PasswordHasher {
	if obs == nil {
		return next
	}
	return &timedHasher{next: next, obs: obs}
}

func (h *timedHasher) Hash(plaintext string) (string, error) {
	start := time.Now()
	defer func() { h.obs.Observe(time.Since(start).Seconds()) }()
	return h.next.Hash(plaintext)
}

func (h *timedHasher) Verify(plaintext, hash string) bool {
	start := time.Now()
	defer func() { h.obs.Observe(time.Since(start).Seconds()) }()
	return h.next.Verify(plaintext, hash)
}
