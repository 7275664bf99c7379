package neupass

import (
	"fmt"
	"sync"

	"github.com/aussiebroadwan/neupass/pkg/cryptox"
)

// Keys used in a CredentialStore.
const (
	KeyStudentID         = "student_id"
	KeyPassword          = "password"
	KeyPortalTicket      = "portal_ticket"
	KeyPortalTicketOwner = "portal_ticket_owner"
)

// CredentialStore persists credentials and the cached portal ticket.
// Implementations must be safe for concurrent use, every application client
// sharing a store reads and refreshes the same portal ticket.
type CredentialStore interface {
	Get(key string) (string, bool)
	Put(key, value string) error
	Has(key string) bool
}

// Credentials are the SSO username (student id) and password.
type Credentials struct {
	StudentID string
	Password  string
}

// fingerprint identifies the credentials a portal ticket was issued for.
func (c Credentials) fingerprint() string {
	return cryptox.FingerprintToken(c.StudentID + ":" + c.Password)
}

// SaveCredentials stores both credential keys.
func SaveCredentials(store CredentialStore, creds Credentials) error {
	if err := store.Put(KeyStudentID, creds.StudentID); err != nil {
		return fmt.Errorf("failed to store student id: %w", err)
	}
	if err := store.Put(KeyPassword, creds.Password); err != nil {
		return fmt.Errorf("failed to store password: %w", err)
	}
	return nil
}

// LoadCredentials reads both credential keys. It reports false when either
// is missing or empty.
func LoadCredentials(store CredentialStore) (Credentials, bool) {
	studentID, ok := store.Get(KeyStudentID)
	if !ok || studentID == "" {
		return Credentials{}, false
	}
	password, ok := store.Get(KeyPassword)
	if !ok || password == "" {
		return Credentials{}, false
	}
	return Credentials{StudentID: studentID, Password: password}, true
}

// MemoryStore is an in-process CredentialStore. Nothing survives a restart.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (s *MemoryStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *MemoryStore) Put(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *MemoryStore) Has(key string) bool {
	_, ok := s.Get(key)
	return ok
}
