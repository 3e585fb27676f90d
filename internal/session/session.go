// Package session handles registration, login and token resolution. Tokens
// live only in process memory and never expire; a restart invalidates them.
package session

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/park285/tictac-server/internal/domain"
	"github.com/park285/tictac-server/internal/obslog"
	"github.com/park285/tictac-server/internal/store"
)

var (
	ErrInvalidInput   = errors.New("invalid username or password")
	ErrUserExists     = store.ErrUserExists
	ErrBadCredentials = errors.New("bad credentials")
	ErrUnauthorized   = errors.New("unauthorized")
)

const (
	minPasswordLen = 3
	// bcrypt ignores input past 72 bytes
	maxPasswordLen = 72
)

var usernameRE = regexp.MustCompile(`^[A-Za-z0-9_]{3,16}$`)

// ValidUsername reports whether name is 3-16 letters, digits or underscores.
func ValidUsername(name string) bool { return usernameRE.MatchString(name) }

type Manager struct {
	store store.Store
	cost  int

	// serializes the exists-check and insert of Register
	regMu sync.Mutex

	tokens sync.Map // token -> username
	count  atomic.Int64
}

type Option func(*Manager)

// WithBcryptCost overrides bcrypt.DefaultCost.
func WithBcryptCost(cost int) Option {
	return func(m *Manager) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			m.cost = cost
		}
	}
}

func NewManager(st store.Store, opts ...Option) *Manager {
	m := &Manager{store: st, cost: bcrypt.DefaultCost}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *Manager) Register(ctx context.Context, user, pass string) error {
	if !ValidUsername(user) || len(pass) < minPasswordLen || len(pass) > maxPasswordLen {
		return ErrInvalidInput
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pass), m.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	m.regMu.Lock()
	defer m.regMu.Unlock()
	exists, err := m.store.UserExists(ctx, user)
	if err != nil {
		return fmt.Errorf("check user: %w", err)
	}
	if exists {
		return ErrUserExists
	}
	if err := m.store.AddUser(ctx, user, string(hash)); err != nil {
		if errors.Is(err, store.ErrUserExists) {
			return ErrUserExists
		}
		return fmt.Errorf("add user: %w", err)
	}
	obslog.L().Info("user_register", zap.String("user", user))
	return nil
}

// Login verifies the password and mints a new token. Earlier tokens of the
// same user stay valid.
func (m *Manager) Login(ctx context.Context, user, pass string) (string, domain.Record, error) {
	hash, err := m.store.PasswordHash(ctx, user)
	if errors.Is(err, store.ErrUserNotFound) {
		return "", domain.Record{}, ErrBadCredentials
	}
	if err != nil {
		return "", domain.Record{}, fmt.Errorf("load user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(pass)) != nil {
		return "", domain.Record{}, ErrBadCredentials
	}
	rec, err := m.store.Record(ctx, user)
	if err != nil {
		return "", domain.Record{}, fmt.Errorf("load record: %w", err)
	}

	token := uuid.NewString()
	m.tokens.Store(token, user)
	m.count.Add(1)
	obslog.L().Info("user_login", zap.String("user", user))
	return token, rec, nil
}

func (m *Manager) Resolve(token string) (string, error) {
	if token == "" {
		return "", ErrUnauthorized
	}
	v, ok := m.tokens.Load(token)
	if !ok {
		return "", ErrUnauthorized
	}
	return v.(string), nil
}

// Count is the number of tokens minted since start.
func (m *Manager) Count() int64 { return m.count.Load() }
