package mock

import (
	"context"
	"sync"
	"time"

	"github.com/jon4hz/vaxboard/internal/database"
)

// MockDB is an in-memory implementation of database.DB for testing.
// Passwords are kept in clear text, it must never be used outside of tests.
type MockDB struct {
	mu sync.RWMutex

	users      map[string]*database.User
	passwords  map[string]string
	nextUserID uint

	// Error simulation
	ExistsError       error
	RegisterError     error
	AuthenticateError error
	CountUsersError   error

	// Call tracking
	AuthenticateCalls int
}

var _ database.DB = (*MockDB)(nil)

// NewMockDB creates a new MockDB instance.
func NewMockDB() *MockDB {
	return &MockDB{
		users:      make(map[string]*database.User),
		passwords:  make(map[string]string),
		nextUserID: 1,
	}
}

// Reset clears all data and errors from the mock database.
func (m *MockDB) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.users = make(map[string]*database.User)
	m.passwords = make(map[string]string)
	m.nextUserID = 1

	m.ExistsError = nil
	m.RegisterError = nil
	m.AuthenticateError = nil
	m.CountUsersError = nil
	m.AuthenticateCalls = 0
}

func (m *MockDB) Exists(ctx context.Context, username string) (bool, error) {
	if m.ExistsError != nil {
		return false, m.ExistsError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.users[username]
	return ok, nil
}

func (m *MockDB) Register(ctx context.Context, username, password string) (*database.User, error) {
	if m.RegisterError != nil {
		return nil, m.RegisterError
	}
	if username == "" || password == "" {
		return nil, database.ErrEmptyCredentials
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[username]; ok {
		return nil, database.ErrDuplicateUsername
	}

	user := &database.User{
		ID:           m.nextUserID,
		Username:     username,
		PasswordHash: "mock",
		CreatedAt:    time.Now(),
	}
	m.nextUserID++
	m.users[username] = user
	m.passwords[username] = password

	return user, nil
}

func (m *MockDB) Authenticate(ctx context.Context, username, password string) (bool, error) {
	m.mu.Lock()
	m.AuthenticateCalls++
	m.mu.Unlock()

	if m.AuthenticateError != nil {
		return false, m.AuthenticateError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	stored, ok := m.passwords[username]
	return ok && stored == password, nil
}

func (m *MockDB) CountUsers(ctx context.Context) (int64, error) {
	if m.CountUsersError != nil {
		return 0, m.CountUsersError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	return int64(len(m.users)), nil
}

func (m *MockDB) Close() error {
	return nil
}
