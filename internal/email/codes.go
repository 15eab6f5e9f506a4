package email

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// codeTTL is how long a verification code stays valid.
const codeTTL = 15 * time.Minute

// ErrCodeMismatch indicates a wrong, expired or unknown verification code.
var ErrCodeMismatch = errors.New("email: verification code mismatch")

// CodeStore tracks pending verification codes per email address.
type CodeStore interface {
	// Put stores the code for the address, replacing any previous one.
	Put(ctx context.Context, email, code string) error
	// Verify consumes the code for the address. A successful verify
	// invalidates the stored code.
	Verify(ctx context.Context, email, code string) error
}

// NewCodeStore returns a redis-backed store when a client is provided and
// an in-process store otherwise.
func NewCodeStore(client *redis.Client) CodeStore {
	if client != nil {
		return &redisCodeStore{client: client}
	}
	return &memoryCodeStore{}
}

// redisCodeStore keeps codes in redis so verification survives restarts
// and works across replicas.
type redisCodeStore struct {
	client *redis.Client
}

func (s *redisCodeStore) key(email string) string {
	return "verify_email:" + strings.ToLower(strings.TrimSpace(email))
}

func (s *redisCodeStore) Put(ctx context.Context, email, code string) error {
	return s.client.Set(ctx, s.key(email), code, codeTTL).Err()
}

func (s *redisCodeStore) Verify(ctx context.Context, email, code string) error {
	key := s.key(email)
	stored, errGet := s.client.Get(ctx, key).Result()
	if errGet != nil {
		if errors.Is(errGet, redis.Nil) {
			return ErrCodeMismatch
		}
		return errGet
	}
	if stored == "" || stored != strings.TrimSpace(code) {
		return ErrCodeMismatch
	}
	return s.client.Del(ctx, key).Err()
}

// memoryCodeStore is the single-process fallback when redis is not
// configured.
type memoryCodeStore struct {
	mu    sync.Mutex
	codes map[string]memoryCode
}

type memoryCode struct {
	code      string
	expiresAt time.Time
}

func (s *memoryCodeStore) Put(_ context.Context, email, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.codes == nil {
		s.codes = make(map[string]memoryCode)
	}
	s.codes[strings.ToLower(strings.TrimSpace(email))] = memoryCode{
		code:      code,
		expiresAt: time.Now().Add(codeTTL),
	}
	return nil
}

func (s *memoryCodeStore) Verify(_ context.Context, email, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(strings.TrimSpace(email))
	entry, ok := s.codes[key]
	if !ok || time.Now().After(entry.expiresAt) || entry.code != strings.TrimSpace(code) {
		return ErrCodeMismatch
	}
	delete(s.codes, key)
	return nil
}
