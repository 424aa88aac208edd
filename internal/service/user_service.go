package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/swiftfix/backoffice/internal/domain"
	"github.com/swiftfix/backoffice/internal/repository"
	"github.com/swiftfix/backoffice/internal/security"
)

var (
	// ErrForbidden means the actor is authenticated but lacks the
	// role the operation requires.
	ErrForbidden = errors.New("insufficient role")
	// ErrEmailTaken is returned when provisioning collides with an
	// existing account.
	ErrEmailTaken = errors.New("email already in use")
)

// UserPatch is a partial user mutation. Nil fields are untouched.
type UserPatch struct {
	Name   *string
	Phone  *string
	Email  *string
	Role   *domain.Role
	Active *bool
}

// UserService implements staff provisioning and mutation with the
// self-service exception: anyone may edit their own name and phone, but
// role, active flag and email changes require ADMIN even on one's own
// account.
type UserService struct {
	users    repository.UserRepository
	hasher   *security.PasswordHasher
	sessions *SessionService
	tokens   *TokenService
	authz    RoleAuthorizer
	recorder ActivityRecorder
}

func NewUserService(
	users repository.UserRepository,
	hasher *security.PasswordHasher,
	sessions *SessionService,
	tokens *TokenService,
	authz RoleAuthorizer,
	recorder ActivityRecorder,
) *UserService {
	return &UserService{
		users:    users,
		hasher:   hasher,
		sessions: sessions,
		tokens:   tokens,
		authz:    authz,
		recorder: recorder,
	}
}

// Provision creates a staff account. ADMIN only.
func (s *UserService) Provision(ctx context.Context, actor *security.SessionClaims, email, name, password string, role domain.Role, ip, userAgent string) (*domain.User, error) {
	if !s.authz.HasRole(actor.Role, domain.RoleAdmin) {
		return nil, ErrForbidden
	}
	if !role.Valid() {
		role = domain.RoleEmployee
	}
	if _, err := s.users.FindByEmail(email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	user := &domain.User{
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		Role:         role,
		Active:       true,
	}
	if err := s.users.Create(user); err != nil {
		return nil, err
	}
	s.recorder.Record(ctx, ActivityEntry{
		UserID:      &user.ID,
		Action:      domain.ActionUserCreated,
		Description: fmt.Sprintf("account %s provisioned with role %s", user.Email, user.Role),
		IP:          ip,
		UserAgent:   userAgent,
	})
	return user, nil
}

// Update applies a patch to the target user. The actor may always
// update the narrow self-service fields of their own profile; anything
// privileged goes through the elevated role check even when acting on
// self.
func (s *UserService) Update(ctx context.Context, actor *security.SessionClaims, targetID uint, patch UserPatch, ip, userAgent string) (*domain.User, error) {
	actorID, err := actor.UserID()
	if err != nil {
		return nil, ErrForbidden
	}
	self := actorID == targetID

	privileged := patch.Role != nil || patch.Active != nil || patch.Email != nil
	if privileged && !s.authz.HasRole(actor.Role, domain.RoleAdmin) {
		return nil, ErrForbidden
	}
	if !privileged && !self && !s.authz.HasRole(actor.Role, domain.RoleManager) {
		return nil, ErrForbidden
	}

	user, err := s.users.FindByID(targetID)
	if err != nil {
		return nil, err
	}
	if patch.Name != nil {
		user.Name = *patch.Name
	}
	if patch.Phone != nil {
		user.Phone = patch.Phone
	}
	if patch.Email != nil {
		user.Email = *patch.Email
		user.EmailVerified = false
	}
	if patch.Role != nil {
		if !patch.Role.Valid() {
			return nil, fmt.Errorf("unknown role %q", *patch.Role)
		}
		user.Role = *patch.Role
	}
	deactivated := false
	if patch.Active != nil {
		deactivated = user.Active && !*patch.Active
		user.Active = *patch.Active
	}
	if err := s.users.Update(user); err != nil {
		return nil, err
	}

	// A deactivated account must stop authorizing immediately.
	if deactivated {
		if _, err := s.sessions.RevokeAllForUser(user.ID); err != nil {
			return nil, err
		}
		if err := s.tokens.RevokeRefreshTokens(user.ID); err != nil {
			return nil, err
		}
	}

	action := domain.ActionUserUpdated
	if deactivated {
		action = domain.ActionUserDeactivated
	}
	s.recorder.Record(ctx, ActivityEntry{
		UserID:      &user.ID,
		Action:      action,
		Description: fmt.Sprintf("account %s updated", user.Email),
		IP:          ip,
		UserAgent:   userAgent,
	})
	return user, nil
}

// List returns all staff accounts. MANAGER and above.
func (s *UserService) List(actor *security.SessionClaims) ([]domain.User, error) {
	if !s.authz.HasRole(actor.Role, domain.RoleManager) {
		return nil, ErrForbidden
	}
	return s.users.List()
}

// Get returns one account: self always, others MANAGER and above.
func (s *UserService) Get(actor *security.SessionClaims, targetID uint) (*domain.User, error) {
	actorID, err := actor.UserID()
	if err != nil {
		return nil, ErrForbidden
	}
	if actorID != targetID && !s.authz.HasRole(actor.Role, domain.RoleManager) {
		return nil, ErrForbidden
	}
	return s.users.FindByID(targetID)
}
