package util

import (
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

type User struct {
	Username      string `mapstructure:"username"`
	Password_hash string `mapstructure:"password_hash"`
}

// Authenticator checks login credentials against bcrypt hashes.
type Authenticator struct {
	mu    sync.RWMutex
	users map[string][]byte
}

func NewAuthenticator() *Authenticator {
	return &Authenticator{users: make(map[string][]byte)}
}

// HashPassword returns the bcrypt hash of plain using the given cost.
func HashPassword(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (a *Authenticator) AddUser(username, password string, cost int) error {
	hash, err := HashPassword(password, cost)
	if err != nil {
		return fmt.Errorf("hash password for %s: %w", username, err)
	}
	a.AddHash(username, hash)
	return nil
}

func (a *Authenticator) AddHash(username, hash string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.users[username] = []byte(hash)
}

func (a *Authenticator) Authenticate(username, password string) bool {
	a.mu.RLock()
	hash, ok := a.users[username]
	a.mu.RUnlock()
	if !ok {
		return false
	}
	return bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil
}

// LoadAuthenticator reads the "users" config key. Without configured users
// the built-in admin/admin123 and user/user123 accounts are created.
func LoadAuthenticator() (*Authenticator, error) {
	a := NewAuthenticator()
	var users []User
	if err := Config.UnmarshalKey("users", &users); err != nil {
		return nil, fmt.Errorf("unmarshal users: %w", err)
	}
	for _, u := range users {
		if u.Username == "" || u.Password_hash == "" {
			Logger.Warn().Msgf("skipping incomplete user entry %q", u.Username)
			continue
		}
		a.AddHash(u.Username, u.Password_hash)
	}
	if len(a.users) > 0 {
		return a, nil
	}

	Logger.Warn().Msg("no users configured, using built-in accounts")
	cost := Config.GetInt("bcrypt_cost")
	for username, password := range map[string]string{"admin": "admin123", "user": "user123"} {
		if err := a.AddUser(username, password, cost); err != nil {
			return nil, err
		}
	}
	return a, nil
}
