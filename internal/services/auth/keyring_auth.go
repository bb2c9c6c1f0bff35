package auth

import (
	"errors"

	"github.com/zalando/go-keyring"
)

// KeyringStore keeps tokens in the OS keychain (Keychain, Secret Service
// or Windows Credential Manager).
type KeyringStore struct {
	service string
}

func NewKeyringStore(service string) *KeyringStore {
	if service == "" {
		service = ServiceName
	}
	return &KeyringStore{service: service}
}

func (k *KeyringStore) SetToken(kind string, token string) error {
	return keyring.Set(k.service, NormalizeKind(kind), token)
}

func (k *KeyringStore) GetToken(kind string) (string, error) {
	token, err := keyring.Get(k.service, NormalizeKind(kind))
	return token, notFound(err)
}

func (k *KeyringStore) DeleteToken(kind string) error {
	return notFound(keyring.Delete(k.service, NormalizeKind(kind)))
}

func notFound(err error) error {
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrTokenNotFound
	}
	return err
}
