package session

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/park285/tictac-server/internal/domain"
	"github.com/park285/tictac-server/internal/store/memstore"
)

func newManager() (*Manager, *memstore.Store) {
	st := memstore.New()
	return NewManager(st, WithBcryptCost(bcrypt.MinCost)), st
}

func TestRegisterValidation(t *testing.T) {
	m, _ := newManager()
	ctx := context.Background()

	cases := []struct {
		user, pass string
		want       error
	}{
		{"ab", "secret", ErrInvalidInput},
		{"this_name_is_too_long", "secret", ErrInvalidInput},
		{"bad-name", "secret", ErrInvalidInput},
		{"alice", "pw", ErrInvalidInput},
		{"alice", "secret", nil},
		{"alice", "other", ErrUserExists},
		{"Bob_99", "abc", nil},
	}
	for _, tc := range cases {
		err := m.Register(ctx, tc.user, tc.pass)
		if tc.want == nil {
			assert.NoError(t, err, tc.user)
		} else {
			assert.ErrorIs(t, err, tc.want, tc.user)
		}
	}
}

func TestRegisterStoresHashNotPassword(t *testing.T) {
	m, st := newManager()
	ctx := context.Background()
	require.NoError(t, m.Register(ctx, "alice", "secret"))

	h, err := st.PasswordHash(ctx, "alice")
	require.NoError(t, err)
	assert.NotEqual(t, "secret", h)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(h), []byte("secret")))
}

func TestLoginAndResolve(t *testing.T) {
	m, st := newManager()
	ctx := context.Background()
	require.NoError(t, m.Register(ctx, "alice", "secret"))
	require.NoError(t, st.UpdateResult(ctx, "alice", domain.OutcomeWin))

	_, _, err := m.Login(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, ErrBadCredentials)
	_, _, err = m.Login(ctx, "nobody", "secret")
	assert.ErrorIs(t, err, ErrBadCredentials)

	tok1, rec, err := m.Login(ctx, "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, domain.Record{Wins: 1}, rec)
	tok2, _, err := m.Login(ctx, "alice", "secret")
	require.NoError(t, err)
	assert.NotEqual(t, tok1, tok2)

	for _, tok := range []string{tok1, tok2} {
		u, err := m.Resolve(tok)
		require.NoError(t, err)
		assert.Equal(t, "alice", u)
	}
	_, err = m.Resolve("")
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = m.Resolve("not-a-token")
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, int64(2), m.Count())
}

func TestConcurrentRegisterSingleWinner(t *testing.T) {
	m, _ := newManager()
	ctx := context.Background()

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if m.Register(ctx, "racer", "secret") == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, ok)
}
