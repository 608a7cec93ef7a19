package service

import (
	"context"
	"testing"

	"sodaclub-ledger-api/internal/cache"
	"sodaclub-ledger-api/internal/model"
	"sodaclub-ledger-api/internal/repository"

	"github.com/stretchr/testify/require"
)

// testClub wires every service against a flat-file store in a temp
// directory, the same shape main assembles in production.
type testClub struct {
	store    *repository.CSVLedgerStore
	cache    *cache.MemoryCache
	auth     *AuthService
	ledger   *LedgerService
	approval *ApprovalService
	registry *RegistryService
	members  *MemberService
}

func newTestClub(t *testing.T) *testClub {
	t.Helper()

	store, err := repository.NewCSVLedgerStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	c := cache.NewMemoryCache()
	registry := NewRegistryService(store, store, store)

	return &testClub{
		store:    store,
		cache:    c,
		auth:     NewAuthService(store, NewMemoryTokenStore()),
		ledger:   NewLedgerService(store, store, registry, c, DefaultCacheTTL),
		approval: NewApprovalService(store, c),
		registry: registry,
		members:  NewMemberService(store, store),
	}
}

func (tc *testClub) addMember(t *testing.T, identifier, secret string, role model.Role, status model.MemberStatus) *model.Member {
	t.Helper()
	m := model.Member{
		Identifier: identifier,
		Name:       identifier,
		Secret:     secret,
		Role:       role,
		Status:     status,
	}
	require.NoError(t, tc.store.AddMember(context.Background(), m))
	return &m
}
