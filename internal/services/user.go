package services

import (
	"context"
	"errors"
	"strings"

	"github.com/fanvault/apiserver/internal/events"
	"github.com/fanvault/apiserver/types"
)

// ErrNotAllowed is returned when a moderation rule, not a role gate, rejects
// the caller.
var ErrNotAllowed = errors.New("operation not allowed")

// UserRepository defines persistence operations for user accounts.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
}

// UserService encapsulates account use-cases.
type UserService struct {
	repo UserRepository
	bus  *events.Bus
}

func NewUserService(repo UserRepository, bus *events.Bus) *UserService {
	return &UserService{repo: repo, bus: bus}
}

func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (types.User, error) {
	return s.repo.GetByEmail(ctx, normalizeEmail(email))
}

// Create stores a new account. Emails are case-insensitive, so they are
// normalized before hitting the unique index.
func (s *UserService) Create(ctx context.Context, user types.User) (types.User, error) {
	user.Email = normalizeEmail(user.Email)
	user.Username = strings.TrimSpace(user.Username)
	if user.Role == "" {
		user.Role = types.RoleUser
	}
	return s.repo.Create(ctx, user)
}

// VerifyAge marks the account as age-verified, unlocking mature and explicit
// uploads.
func (s *UserService) VerifyAge(ctx context.Context, id int) (types.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.User{}, err
	}
	if user.AgeVerified {
		return user, nil
	}
	user.AgeVerified = true
	return s.repo.Update(ctx, user)
}

// Ban suspends the target account. Actors may only ban roles strictly below
// their own, so moderators cannot ban each other and nobody bans an admin.
func (s *UserService) Ban(ctx context.Context, actor types.User, targetID int, reason string) (types.User, error) {
	target, err := s.repo.GetByID(ctx, targetID)
	if err != nil {
		return types.User{}, err
	}
	if types.RoleRank(target.Role) >= types.RoleRank(actor.Role) {
		return types.User{}, ErrNotAllowed
	}
	if target.IsBanned {
		return target, nil
	}
	target.IsBanned = true
	banned, err := s.repo.Update(ctx, target)
	if err != nil {
		return types.User{}, err
	}
	s.bus.Emit(ctx, events.ChannelModerationActions, events.Event{
		Type:       "user.banned",
		ActorID:    actor.ID,
		TargetType: types.TargetUser,
		TargetID:   banned.ID,
		Detail:     reason,
	})
	return banned, nil
}

// Unban lifts a suspension.
func (s *UserService) Unban(ctx context.Context, actor types.User, targetID int) (types.User, error) {
	target, err := s.repo.GetByID(ctx, targetID)
	if err != nil {
		return types.User{}, err
	}
	if !target.IsBanned {
		return target, nil
	}
	target.IsBanned = false
	unbanned, err := s.repo.Update(ctx, target)
	if err != nil {
		return types.User{}, err
	}
	s.bus.Emit(ctx, events.ChannelModerationActions, events.Event{
		Type:       "user.unbanned",
		ActorID:    actor.ID,
		TargetType: types.TargetUser,
		TargetID:   unbanned.ID,
	})
	return unbanned, nil
}

// ChangeRole assigns a new role to the target account.
func (s *UserService) ChangeRole(ctx context.Context, actor types.User, targetID int, role string) (types.User, error) {
	if !types.ValidRole(role) {
		return types.User{}, ErrNotAllowed
	}
	target, err := s.repo.GetByID(ctx, targetID)
	if err != nil {
		return types.User{}, err
	}
	if target.Role == role {
		return target, nil
	}
	target.Role = role
	updated, err := s.repo.Update(ctx, target)
	if err != nil {
		return types.User{}, err
	}
	s.bus.Emit(ctx, events.ChannelModerationActions, events.Event{
		Type:       "user.role_changed",
		ActorID:    actor.ID,
		TargetType: types.TargetUser,
		TargetID:   updated.ID,
		Detail:     role,
	})
	return updated, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
