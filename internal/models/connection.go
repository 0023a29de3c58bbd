package models

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Connection represents a user-configured shop (source or destination).
type Connection struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Role        string     `json:"role"` // "source" or "destination"
	URL         string     `json:"url"`  // myshop.myshopify.com
	Token       string     `json:"token"`
	ShopName    string     `json:"shop_name,omitempty"`
	Status      string     `json:"status"` // "unknown", "ok", "error"
	StatusError string     `json:"status_error,omitempty"`
	LastChecked *time.Time `json:"last_checked,omitempty"`
}

// Host returns the shop host without scheme or trailing slash.
func (c *Connection) Host() string {
	h := strings.TrimPrefix(strings.TrimPrefix(c.URL, "https://"), "http://")
	return strings.TrimSuffix(h, "/")
}

// Shop returns the credentials of this connection for a migration request.
// An explicit scheme in URL is kept.
func (c *Connection) Shop() Shop {
	return Shop{URL: strings.TrimSuffix(strings.TrimSpace(c.URL), "/"), Token: c.Token}
}

// MaskedToken returns a placeholder for a configured access token.
func (c *Connection) MaskedToken() string {
	if c.Token == "" {
		return ""
	}
	return "••••••••"
}

// Redacted returns a copy safe to hand out over the API.
func (c *Connection) Redacted() Connection {
	cp := *c
	cp.Token = c.MaskedToken()
	return cp
}

// ConnectionStore is an in-memory thread-safe store for connections.
type ConnectionStore struct {
	mu    sync.RWMutex
	conns map[string]*Connection
}

// NewConnectionStore creates an empty connection store.
func NewConnectionStore() *ConnectionStore {
	return &ConnectionStore{conns: make(map[string]*Connection)}
}

// Create adds a new connection, assigning it a UUID.
func (s *ConnectionStore) Create(c *Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = uuid.New().String()
	c.Status = "unknown"
	s.conns[c.ID] = c
}

// Get returns a connection by ID, or nil if not found.
func (s *ConnectionStore) Get(id string) *Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conns[id]
}

// FindByName returns the first connection with the given name.
func (s *ConnectionStore) FindByName(name string) *Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.conns {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// List returns all connections.
func (s *ConnectionStore) List() []*Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*Connection, 0, len(s.conns))
	for _, c := range s.conns {
		result = append(result, c)
	}
	return result
}

// Update replaces an existing connection's settings. An empty token keeps
// the stored one.
func (s *ConnectionStore) Update(c *Connection) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.conns[c.ID]
	if !ok {
		return false
	}
	if c.Token == "" {
		c.Token = old.Token
	}
	if c.Status == "" {
		c.Status = old.Status
	}
	s.conns[c.ID] = c
	return true
}

// Delete removes a connection by ID.
func (s *ConnectionStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conns[id]; !ok {
		return false
	}
	delete(s.conns, id)
	return true
}

// SetHealth records the result of a connection test.
func (s *ConnectionStore) SetHealth(id, status, errMsg, shopName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conns[id]
	if !ok {
		return
	}
	now := time.Now()
	c.Status = status
	c.StatusError = errMsg
	if shopName != "" {
		c.ShopName = shopName
	}
	c.LastChecked = &now
}
