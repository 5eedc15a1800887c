// Package session holds the client's explicit authentication state.
package session

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"storefront/internal/models"
)

const storageKey = "session"

// KV is the persistence the session needs.
type KV interface {
	GetJSON(key string, v any) (bool, error)
	PutJSON(key string, v any) error
	Delete(key string) error
}

// State is one login. ID is minted per login so anything keyed by it, such
// as the cart merge marker, is scoped to that login.
type State struct {
	ID     string      `json:"id"`
	UserID string      `json:"userId"`
	Name   string      `json:"name"`
	Email  string      `json:"email"`
	Role   models.Role `json:"role"`
	Token  string      `json:"token"`
}

type Session struct {
	kv KV

	mu    sync.RWMutex
	state *State
}

// Load restores a saved session from kv, if any.
func Load(kv KV) (*Session, error) {
	s := &Session{kv: kv}
	var st State
	ok, err := kv.GetJSON(storageKey, &st)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if ok && st.Token != "" {
		s.state = &st
	}
	return s, nil
}

// Start records a fresh login for user and persists it.
func (s *Session) Start(user models.User, token string) (State, error) {
	st := State{
		ID:     uuid.NewString(),
		UserID: user.ID,
		Name:   user.Name,
		Email:  user.Email,
		Role:   user.Role,
		Token:  token,
	}
	return st, s.Set(st)
}

func (s *Session) Set(st State) error {
	if err := s.kv.PutJSON(storageKey, st); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	s.mu.Lock()
	s.state = &st
	s.mu.Unlock()
	return nil
}

func (s *Session) Clear() error {
	s.mu.Lock()
	s.state = nil
	s.mu.Unlock()
	if err := s.kv.Delete(storageKey); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

func (s *Session) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state != nil
}

// Current returns a copy of the state and whether a user is logged in.
func (s *Session) Current() (State, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == nil {
		return State{}, false
	}
	return *s.state, true
}

func (s *Session) SessionID() string {
	st, _ := s.Current()
	return st.ID
}

func (s *Session) UserID() string {
	st, _ := s.Current()
	return st.UserID
}

func (s *Session) Token() string {
	st, _ := s.Current()
	return st.Token
}
