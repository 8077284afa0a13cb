package pipeline

import (
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
)

// Session statuses over a session's lifetime.
const (
	SessionActive    = "active"
	SessionCompleted = "completed"
	SessionBlocked   = "blocked"
	SessionErrored   = "errored"
)

// Request is one user query entering the pipeline.
type Request struct {
	UserID     string                 `json:"user_id"`
	Body       string                 `json:"body"`
	Context    map[string]interface{} `json:"context,omitempty"`
	ReceivedAt time.Time              `json:"received_at"`
}

// Session tracks one request through the pipeline stages.
type Session struct {
	ID            string    `json:"id"`
	Request       Request   `json:"request"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	CompletedAt   time.Time `json:"completed_at,omitempty"`
	FinalResponse *Response `json:"final_response,omitempty"`
}

// newSessionID derives the id from the user and the second the request
// arrived; collisions within a second for the same user are acceptable
// because sessions are tracking state, not storage keys.
func newSessionID(userID string, at time.Time) string {
	return fmt.Sprintf("%s_%s", userID, at.UTC().Format("20060102_150405"))
}

// SessionStore keeps recent sessions in process memory with a sliding
// TTL. It exists for live introspection (health endpoint, websocket
// feed), not durability; the vault holds the durable record.
type SessionStore struct {
	sessions *cache.Cache
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{sessions: cache.New(ttl, 2*ttl)}
}

func (s *SessionStore) Save(session *Session) {
	s.sessions.SetDefault(session.ID, session)
}

func (s *SessionStore) Find(id string) (*Session, bool) {
	raw, ok := s.sessions.Get(id)
	if !ok {
		return nil, false
	}
	return raw.(*Session), true
}

func (s *SessionStore) ActiveCount() int {
	count := 0
	for _, item := range s.sessions.Items() {
		if session, ok := item.Object.(*Session); ok && session.Status == SessionActive {
			count++
		}
	}
	return count
}
