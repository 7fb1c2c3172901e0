package runstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/config"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/domain/scoping"
)

func sampleContent(runID string) scoping.GeneratedContent {
	return scoping.GeneratedContent{
		RunID:      runID,
		Technology: "Cisco Meraki",
		Services: []scoping.Service{{
			ID: "svc_0", Name: "Deploy", Phase: "Execution", Hours: 8, Quantity: 1,
			Subservices: []scoping.Subservice{{ID: "sub_0_0", Name: "Install", BaseHours: 2, Hours: 8, Quantity: 4, Multiplier: 1,
				ScalingFactors: []string{"site_count"}, MappedQuestions: []string{"site_qty"}}},
		}},
		Questions:    []scoping.Question{},
		Calculations: []scoping.Calculation{},
		Sources:      []scoping.ResearchSource{},
		TotalHours:   8,
	}
}

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	runID := uuid.NewString()

	_, err := s.Get(ctx, runID)
	require.ErrorIs(t, err, ErrNotFound)

	require.ErrorIs(t, s.Save(ctx, sampleContent("")), ErrMissingID)

	want := sampleContent(runID)
	require.NoError(t, s.Save(ctx, want))
	got, err := s.Get(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	want.TotalHours = 12
	require.NoError(t, s.Save(ctx, want))
	got, err = s.Get(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, 12.0, got.TotalHours)
}

func TestMemoryStore(t *testing.T) {
	s := NewMemory(8, time.Minute)
	defer s.Close()
	exerciseStore(t, s)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	s := NewMemory(8, time.Minute)
	ctx := context.Background()
	c := sampleContent("r1")
	require.NoError(t, s.Save(ctx, c))
	c.Services[0].Name = "mutated"

	got, err := s.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "Deploy", got.Services[0].Name)
	got.Services[0].Name = "again"

	again, err := s.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "Deploy", again.Services[0].Name)
}

func TestMemoryStoreEvictsOldest(t *testing.T) {
	s := NewMemory(2, time.Minute)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.Save(ctx, sampleContent(id)))
	}
	assert.Equal(t, 2, s.Len())
	_, err := s.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNewSelectsBackend(t *testing.T) {
	s, err := New(context.Background(), config.StoreConfig{}, nil)
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	_, err = New(context.Background(), config.StoreConfig{Backend: "etcd"}, nil)
	require.Error(t, err)

	_, err = New(context.Background(), config.StoreConfig{Backend: config.StoreRedis}, nil)
	require.Error(t, err)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	s, err := NewRedis(context.Background(), config.StoreConfig{
		RedisAddr: addr,
		KeyPrefix: "scope:test:",
		TTL:       config.D(time.Minute),
	}, nil)
	require.NoError(t, err)
	defer s.Close()
	exerciseStore(t, s)
}
