package users

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mtvts/mtvts/internal/shared"
)

type memoryRepo struct {
	mu    sync.Mutex
	users map[int64]*User
}

func newMemoryRepo(seed ...User) *memoryRepo {
	repo := &memoryRepo{users: map[int64]*User{}}
	for i := range seed {
		u := seed[i]
		repo.users[u.ID] = &u
	}
	return repo
}

func (m *memoryRepo) FindByLogin(_ context.Context, login string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, login) || u.Username == login {
			cp := *u
			return &cp, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *memoryRepo) Get(_ context.Context, id int64) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, shared.NotFoundf("user %d", id)
	}
	cp := *u
	return &cp, nil
}

func (m *memoryRepo) List(_ context.Context, req ListRequest) ([]User, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []User
	for _, u := range m.users {
		if req.Role != "" && u.Role != req.Role {
			continue
		}
		if req.Query != "" && !strings.Contains(strings.ToLower(u.FullName+" "+u.Email), strings.ToLower(req.Query)) {
			continue
		}
		matched = append(matched, *u)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })
	total := len(matched)
	start := (req.Page - 1) * req.PerPage
	if start > total {
		start = total
	}
	end := start + req.PerPage
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (m *memoryRepo) Create(_ context.Context, nu NewUser) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !shared.ValidRole(nu.Role) {
		return nil, shared.NewValidationError("role", "is unknown")
	}
	var maxID int64
	for _, u := range m.users {
		switch {
		case u.Username == nu.Username:
			return nil, shared.NewValidationError("username", "has already been taken")
		case strings.EqualFold(u.Email, nu.Email):
			return nil, shared.NewValidationError("email", "has already been taken")
		case u.EnforcerNo != nil && nu.EnforcerNo != nil && *u.EnforcerNo == *nu.EnforcerNo:
			return nil, shared.NewValidationError("enforcer_no", "has already been taken")
		}
		if u.ID > maxID {
			maxID = u.ID
		}
	}
	u := &User{
		ID:           maxID + 1,
		FullName:     nu.FullName,
		Username:     nu.Username,
		Email:        nu.Email,
		EnforcerNo:   nu.EnforcerNo,
		EmployeeID:   nu.EmployeeID,
		Role:         nu.Role,
		IsActive:     true,
		PasswordHash: nu.PasswordHash,
	}
	m.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (m *memoryRepo) Update(_ context.Context, id int64, req UpdateRequest) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, shared.NotFoundf("user %d", id)
	}
	if req.Role != nil && !shared.ValidRole(*req.Role) {
		return nil, shared.NewValidationError("role", "is unknown")
	}
	if req.FullName != nil {
		u.FullName = *req.FullName
	}
	if req.Email != nil {
		u.Email = *req.Email
	}
	if req.Role != nil {
		u.Role = *req.Role
	}
	if req.Active != nil {
		u.IsActive = *req.Active
	}
	cp := *u
	return &cp, nil
}

func (m *memoryRepo) SetPassword(_ context.Context, id int64, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return shared.NotFoundf("user %d", id)
	}
	u.PasswordHash = hash
	return nil
}

type auditSpy struct {
	logs []shared.AuditLog
}

func (a *auditSpy) Record(_ context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func seedUsers() []User {
	return []User{
		{ID: 1, FullName: "Ada Admin", Username: "admin", Email: "admin@city.gov", Role: shared.RoleAdmin, IsActive: true},
		{ID: 2, FullName: "Enzo Enforcer", Username: "enzo", Email: "enzo@city.gov", Role: shared.RoleEnforcer, IsActive: true},
		{ID: 3, FullName: "Cora Cashier", Username: "cora", Email: "cora@city.gov", Role: shared.RoleCashier, IsActive: true},
		{ID: 4, FullName: "Eli Enforcer", Username: "eli", Email: "eli@city.gov", Role: shared.RoleEnforcer, IsActive: false},
	}
}

func newTestService(t *testing.T) (*Service, *memoryRepo, *shared.TokenStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	tokens := shared.NewTokenStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Hour)
	repo := newMemoryRepo(seedUsers()...)
	svc := NewService(repo, tokens, nil)
	svc.cost = bcrypt.MinCost
	return svc, repo, tokens
}

func ptr[T any](v T) *T { return &v }

func TestListFiltersAndPaginates(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.List(ctx, ListRequest{Role: "Enforcer"})
	require.NoError(t, err)
	require.Len(t, res.Data, 2)
	assert.Equal(t, int64(4), res.Data[0].ID)
	assert.Equal(t, 2, res.Total)

	res, err = svc.List(ctx, ListRequest{Role: "all", PerPage: 3, Page: 2})
	require.NoError(t, err)
	require.Len(t, res.Data, 1)
	assert.Equal(t, 2, res.TotalPages)
	assert.Equal(t, 2, res.Page)

	res, err = svc.List(ctx, ListRequest{Query: "cora@"})
	require.NoError(t, err)
	require.Len(t, res.Data, 1)
	assert.Equal(t, "cora", res.Data[0].Username)

	res, err = svc.List(ctx, ListRequest{Query: "nobody"})
	require.NoError(t, err)
	assert.NotNil(t, res.Data)
	assert.Empty(t, res.Data)
}

func TestUpdateDeactivationRevokesToken(t *testing.T) {
	svc, _, tokens := newTestService(t)
	ctx := context.Background()
	audit := &auditSpy{}
	svc.SetAudit(audit)

	token, _, err := tokens.Issue(ctx, 2, shared.RoleEnforcer)
	require.NoError(t, err)

	u, err := svc.Update(ctx, 2, UpdateRequest{Active: ptr(false)}, 1)
	require.NoError(t, err)
	assert.False(t, u.IsActive)

	_, err = tokens.Resolve(ctx, token)
	require.ErrorIs(t, err, shared.ErrUnauthorized)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, "user.update", audit.logs[0].Action)
	assert.Equal(t, "2", audit.logs[0].EntityID)
}

func TestUpdateProfileKeepsToken(t *testing.T) {
	svc, _, tokens := newTestService(t)
	ctx := context.Background()

	token, _, err := tokens.Issue(ctx, 3, shared.RoleCashier)
	require.NoError(t, err)

	u, err := svc.Update(ctx, 3, UpdateRequest{FullName: ptr("  Cora C. Cashier "), Email: ptr("CORA.C@city.gov")}, 1)
	require.NoError(t, err)
	assert.Equal(t, "Cora C. Cashier", u.FullName)
	assert.Equal(t, "cora.c@city.gov", u.Email)

	actor, err := tokens.Resolve(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, int64(3), actor.UserID)
}

func TestUpdateRoleChangeRevokesToken(t *testing.T) {
	svc, _, tokens := newTestService(t)
	ctx := context.Background()

	token, _, err := tokens.Issue(ctx, 3, shared.RoleCashier)
	require.NoError(t, err)

	u, err := svc.Update(ctx, 3, UpdateRequest{Role: ptr("enforcer")}, 1)
	require.NoError(t, err)
	assert.Equal(t, shared.RoleEnforcer, u.Role)

	_, err = tokens.Resolve(ctx, token)
	require.ErrorIs(t, err, shared.ErrUnauthorized)
}

func TestUpdateValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		id    int64
		req   UpdateRequest
		field string
	}{
		{name: "bad email", id: 2, req: UpdateRequest{Email: ptr("not-an-email")}, field: "email"},
		{name: "unknown role", id: 2, req: UpdateRequest{Role: ptr("mayor")}, field: "role"},
		{name: "blank name", id: 2, req: UpdateRequest{FullName: ptr("   ")}, field: "full_name"},
		{name: "self deactivation", id: 1, req: UpdateRequest{Active: ptr(false)}, field: "active"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Update(ctx, tc.id, tc.req, 1)
			var verr *shared.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, tc.field)
		})
	}

	_, err := svc.Update(ctx, 99, UpdateRequest{Active: ptr(true)}, 1)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestResetPassword(t *testing.T) {
	svc, repo, tokens := newTestService(t)
	ctx := context.Background()

	token, _, err := tokens.Issue(ctx, 2, shared.RoleEnforcer)
	require.NoError(t, err)

	err = svc.ResetPassword(ctx, 2, ResetPasswordRequest{Password: "short"}, 1)
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "password")

	require.NoError(t, svc.ResetPassword(ctx, 2, ResetPasswordRequest{Password: "new-secret-pass"}, 1))
	u, err := repo.Get(ctx, 2)
	require.NoError(t, err)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("new-secret-pass")))

	_, err = tokens.Resolve(ctx, token)
	require.ErrorIs(t, err, shared.ErrUnauthorized)

	require.ErrorIs(t, svc.ResetPassword(ctx, 42, ResetPasswordRequest{Password: "new-secret-pass"}, 1), shared.ErrNotFound)
}

func TestCreateHashesPasswordAndAudits(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	audit := &auditSpy{}
	svc.SetAudit(audit)

	u, err := svc.Create(ctx, CreateRequest{
		FullName:   "  Nina Enforcer ",
		Username:   "nina",
		Email:      "Nina@City.gov",
		Password:   "patrol-2025",
		Role:       "Enforcer",
		EnforcerNo: ptr(" ENF-0042 "),
		EmployeeID: ptr("  "),
	}, 1)
	require.NoError(t, err)
	assert.Equal(t, "Nina Enforcer", u.FullName)
	assert.Equal(t, "nina@city.gov", u.Email)
	assert.Equal(t, shared.RoleEnforcer, u.Role)
	require.NotNil(t, u.EnforcerNo)
	assert.Equal(t, "ENF-0042", *u.EnforcerNo)
	assert.Nil(t, u.EmployeeID)
	assert.True(t, u.IsActive)

	stored, err := repo.Get(ctx, u.ID)
	require.NoError(t, err)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("patrol-2025")))

	require.Len(t, audit.logs, 1)
	assert.Equal(t, "user.create", audit.logs[0].Action)
}

func TestCreateRejectsInvalidOrTaken(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	valid := func() CreateRequest {
		return CreateRequest{FullName: "New Person", Username: "newbie", Email: "newbie@city.gov", Password: "long-enough", Role: "cashier"}
	}

	cases := []struct {
		name  string
		edit  func(*CreateRequest)
		field string
	}{
		{"missing name", func(r *CreateRequest) { r.FullName = " " }, "full_name"},
		{"bad email", func(r *CreateRequest) { r.Email = "nope" }, "email"},
		{"short password", func(r *CreateRequest) { r.Password = "short" }, "password"},
		{"unknown role", func(r *CreateRequest) { r.Role = "mayor" }, "role"},
		{"taken username", func(r *CreateRequest) { r.Username = "enzo" }, "username"},
		{"taken email", func(r *CreateRequest) { r.Email = "CORA@city.gov" }, "email"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := valid()
			tc.edit(&req)
			_, err := svc.Create(ctx, req, 1)
			require.ErrorIs(t, err, shared.ErrValidation)
			require.NotErrorIs(t, err, shared.ErrConflict)
			var verr *shared.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, tc.field)
		})
	}
}
