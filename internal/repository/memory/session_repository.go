package memory

import (
	"time"

	"therapist-bot-be/pkg/store"

	"github.com/patrickmn/go-cache"
)

type ISessionRepository interface {
	Save(session *store.Session)
	Get(sessionID string) (*store.Session, bool)
	Touch(session *store.Session)
	Delete(sessionID string)
	Count() int
	OnEvicted(fn func(session *store.Session))
}

type SessionRepository struct {
	cache *cache.Cache
}

// NewSessionRepository keeps sessions alive for ttl after their last Touch
// and purges expired ones every ttl/6.
func NewSessionRepository(ttl time.Duration) *SessionRepository {
	cleanup := ttl / 6
	if cleanup <= 0 {
		cleanup = time.Minute
	}
	return &SessionRepository{
		cache: cache.New(ttl, cleanup),
	}
}

func (r *SessionRepository) Save(session *store.Session) {
	r.cache.Set(session.ID, session, cache.DefaultExpiration)
}

func (r *SessionRepository) Get(sessionID string) (*store.Session, bool) {
	if x, found := r.cache.Get(sessionID); found {
		return x.(*store.Session), true
	}
	return nil, false
}

// Touch renews the session's expiration.
func (r *SessionRepository) Touch(session *store.Session) {
	r.cache.Set(session.ID, session, cache.DefaultExpiration)
}

func (r *SessionRepository) Delete(sessionID string) {
	r.cache.Delete(sessionID)
}

func (r *SessionRepository) Count() int {
	return r.cache.ItemCount()
}

// OnEvicted registers fn for explicit deletes and expirations alike.
func (r *SessionRepository) OnEvicted(fn func(session *store.Session)) {
	r.cache.OnEvicted(func(_ string, v interface{}) {
		fn(v.(*store.Session))
	})
}
