package auth

import "sync"

// MockStore is an in-memory Store for tests. It is safe for concurrent use.
type MockStore struct {
	mu     sync.Mutex
	tokens map[string]string
}

func NewMockStore() *MockStore {
	return &MockStore{tokens: make(map[string]string)}
}

func (m *MockStore) SetToken(kind string, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[NormalizeKind(kind)] = token
	return nil
}

func (m *MockStore) GetToken(kind string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	token, ok := m.tokens[NormalizeKind(kind)]
	if !ok {
		return "", ErrTokenNotFound
	}
	return token, nil
}

func (m *MockStore) DeleteToken(kind string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := NormalizeKind(kind)
	if _, ok := m.tokens[key]; !ok {
		return ErrTokenNotFound
	}
	delete(m.tokens, key)
	return nil
}
