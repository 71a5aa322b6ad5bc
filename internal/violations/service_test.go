package violations

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtvts/mtvts/internal/platform/cache"
	"github.com/mtvts/mtvts/internal/shared"
)

type memoryRepo struct {
	mu     sync.Mutex
	items  map[int64]Violation
	nextID int64
	lists  atomic.Int32
}

func newMemoryRepo(seed ...Violation) *memoryRepo {
	repo := &memoryRepo{items: map[int64]Violation{}}
	for _, v := range seed {
		repo.nextID++
		v.ID = repo.nextID
		repo.items[v.ID] = v
	}
	return repo
}

func (m *memoryRepo) ListTypes(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[string]struct{}{}
	var out []string
	for _, v := range m.items {
		if _, ok := seen[v.Type]; !ok {
			seen[v.Type] = struct{}{}
			out = append(out, v.Type)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *memoryRepo) List(_ context.Context, req ListRequest) ([]Violation, error) {
	m.lists.Add(1)
	time.Sleep(5 * time.Millisecond)
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Violation
	for _, v := range m.items {
		if req.Type != "" && v.Type != req.Type {
			continue
		}
		if req.Query != "" && !strings.Contains(strings.ToLower(v.Name), strings.ToLower(req.Query)) {
			continue
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (m *memoryRepo) Get(_ context.Context, id int64) (*Violation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.items[id]
	if !ok {
		return nil, shared.NotFoundf("violation %d", id)
	}
	return &v, nil
}

func (m *memoryRepo) GetMany(_ context.Context, ids []int64) ([]Violation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Violation
	for _, id := range ids {
		if v, ok := m.items[id]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *memoryRepo) Create(_ context.Context, req UpsertRequest) (*Violation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	v := Violation{ID: m.nextID, Type: req.Type, Name: req.Name, Fine: req.Fine, OrdinanceNo: req.OrdinanceNo}
	m.items[v.ID] = v
	return &v, nil
}

func (m *memoryRepo) Update(_ context.Context, id int64, req UpsertRequest) (*Violation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return nil, shared.NotFoundf("violation %d", id)
	}
	v := Violation{ID: id, Type: req.Type, Name: req.Name, Fine: req.Fine, OrdinanceNo: req.OrdinanceNo}
	m.items[id] = v
	return &v, nil
}

func seedRepo() *memoryRepo {
	return newMemoryRepo(
		Violation{Type: "Moving", Name: "Reckless driving", Fine: decimal.RequireFromString("1000")},
		Violation{Type: "Parking", Name: "Illegal parking", Fine: decimal.RequireFromString("500")},
		Violation{Type: "Moving", Name: "Beating the red light", Fine: decimal.RequireFromString("500")},
	)
}

func newCachedService(t *testing.T, repo Repository) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewService(repo, cache.NewVersioned(client, CacheNamespace, time.Minute), nil)
}

func TestListFiltersAndSorts(t *testing.T) {
	svc := NewService(seedRepo(), nil, nil)
	ctx := context.Background()

	types, err := svc.ListTypes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Moving", "Parking"}, types)

	items, err := svc.List(ctx, ListRequest{Type: " Moving "})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Beating the red light", items[0].Name)

	items, err = svc.List(ctx, ListRequest{Query: "PARK"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Illegal parking", items[0].Name)
}

func TestCachedListCollapsesMissesAndInvalidatesOnWrite(t *testing.T) {
	repo := seedRepo()
	svc := newCachedService(t, repo)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			items, err := svc.List(ctx, ListRequest{})
			assert.NoError(t, err)
			assert.Len(t, items, 3)
		}()
	}
	wg.Wait()
	loads := repo.lists.Load()
	assert.Less(t, loads, int32(8))

	_, err := svc.List(ctx, ListRequest{})
	require.NoError(t, err)
	assert.Equal(t, loads, repo.lists.Load(), "second read served from cache")

	_, err = svc.Create(ctx, UpsertRequest{Type: "Parking", Name: "Double parking", Fine: decimal.RequireFromString("750")}, 1)
	require.NoError(t, err)

	items, err := svc.List(ctx, ListRequest{})
	require.NoError(t, err)
	assert.Len(t, items, 4)
	assert.Equal(t, loads+1, repo.lists.Load())
}

func TestUpsertValidation(t *testing.T) {
	svc := NewService(seedRepo(), nil, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, UpsertRequest{Type: "  ", Name: "", Fine: decimal.RequireFromString("-1")}, 1)
	require.ErrorIs(t, err, shared.ErrValidation)
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "type")
	assert.Contains(t, verr.Fields, "name")
	assert.Contains(t, verr.Fields, "fine")

	_, err = svc.Update(ctx, 99, UpsertRequest{Type: "Moving", Name: "Speeding", Fine: decimal.RequireFromString("1500")}, 1)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGetManyNamesMissingID(t *testing.T) {
	svc := NewService(seedRepo(), nil, nil)

	byID, err := svc.GetMany(context.Background(), []int64{1, 2})
	require.NoError(t, err)
	assert.Len(t, byID, 2)

	_, err = svc.GetMany(context.Background(), []int64{1, 42})
	require.ErrorIs(t, err, shared.ErrNotFound)
	assert.Contains(t, err.Error(), "42")
}
