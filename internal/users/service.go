package users

import (
	"context"
	"log/slog"
	"strconv"

	"golang.org/x/crypto/bcrypt"

	"github.com/mtvts/mtvts/internal/shared"
)

// TokenRevoker drops a user's active bearer token.
type TokenRevoker interface {
	RevokeUser(ctx context.Context, userID int64) error
}

// Service handles account administration.
type Service struct {
	repo   Repository
	tokens TokenRevoker
	audit  shared.AuditRecorder
	logger *slog.Logger
	cost   int
}

// NewService builds Service instance.
func NewService(repo Repository, tokens TokenRevoker, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, tokens: tokens, logger: logger, cost: bcrypt.DefaultCost}
}

// SetAudit attaches an audit recorder for account changes.
func (s *Service) SetAudit(audit shared.AuditRecorder) {
	s.audit = audit
}

// List returns a page of users.
func (s *Service) List(ctx context.Context, req ListRequest) (ListResponse, error) {
	req = req.normalized()
	items, total, err := s.repo.List(ctx, req)
	if err != nil {
		return ListResponse{}, err
	}
	if items == nil {
		items = []User{}
	}
	return ListResponse{Data: items, Pagination: shared.NewPagination(req.Page, req.PerPage, total)}, nil
}

// Get returns a single user.
func (s *Service) Get(ctx context.Context, id int64) (*User, error) {
	return s.repo.Get(ctx, id)
}

// Create registers an account. Duplicate usernames, emails and staff numbers
// are validation errors.
func (s *Service) Create(ctx context.Context, req CreateRequest, actorID int64) (*User, error) {
	req.normalize()
	if err := shared.ValidateStruct(req); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, err
	}
	u, err := s.repo.Create(ctx, NewUser{
		FullName:     req.FullName,
		Username:     req.Username,
		Email:        req.Email,
		Role:         req.Role,
		EnforcerNo:   req.EnforcerNo,
		EmployeeID:   req.EmployeeID,
		PasswordHash: string(hash),
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("user created", slog.Int64("user_id", u.ID), slog.String("role", u.Role))
	s.record(ctx, actorID, "user.create", u.ID, map[string]any{"role": u.Role})
	return u, nil
}

// Update patches profile fields, role and active flag. Deactivating a user or
// changing their role revokes the token they currently hold.
func (s *Service) Update(ctx context.Context, id int64, req UpdateRequest, actorID int64) (*User, error) {
	req.normalize()
	if err := shared.ValidateStruct(req); err != nil {
		return nil, err
	}
	if req.FullName != nil && *req.FullName == "" {
		return nil, shared.NewValidationError("full_name", "must not be blank")
	}
	before, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Empty() {
		return before, nil
	}
	if id == actorID && req.Active != nil && !*req.Active {
		return nil, shared.NewValidationError("active", "cannot deactivate your own account")
	}

	after, err := s.repo.Update(ctx, id, req)
	if err != nil {
		return nil, err
	}
	if (before.IsActive && !after.IsActive) || before.Role != after.Role {
		s.revoke(ctx, id)
	}
	s.record(ctx, actorID, "user.update", id, map[string]any{
		"role":   after.Role,
		"active": after.IsActive,
	})
	return after, nil
}

// ResetPassword replaces the user's password and revokes their token.
func (s *Service) ResetPassword(ctx context.Context, id int64, req ResetPasswordRequest, actorID int64) error {
	if err := shared.ValidateStruct(req); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return err
	}
	if err := s.repo.SetPassword(ctx, id, string(hash)); err != nil {
		return err
	}
	s.revoke(ctx, id)
	s.record(ctx, actorID, "user.reset_password", id, nil)
	return nil
}

func (s *Service) revoke(ctx context.Context, id int64) {
	if s.tokens == nil {
		return
	}
	if err := s.tokens.RevokeUser(ctx, id); err != nil {
		s.logger.Warn("revoke user token", slog.Any("error", err), slog.Int64("user_id", id))
	}
}

func (s *Service) record(ctx context.Context, actorID int64, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "user",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("user audit failed", slog.Any("error", err), slog.Int64("user_id", id))
	}
}
