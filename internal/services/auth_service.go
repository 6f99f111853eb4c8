package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yukikurage/team-taskboard/internal/constants"
	"github.com/yukikurage/team-taskboard/internal/models"
	"github.com/yukikurage/team-taskboard/internal/repository"
	"github.com/yukikurage/team-taskboard/internal/utils"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrEmailTaken           = errors.New("email already exists")
	ErrUsernameTaken        = errors.New("username already exists")
	ErrUserExists           = errors.New("user already exists")
	ErrUsernameRequired     = errors.New("username is required")
	ErrEmailRequired        = errors.New("email is required")
	ErrPasswordTooShort     = errors.New("password too short")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrUserNotFound         = errors.New("user not found")
	ErrFailedToHashPassword = errors.New("failed to hash password")
	ErrFailedToIssueSession = errors.New("failed to issue session")
)

// AuthService handles authentication related business logic.
type AuthService struct {
	userRepo    repository.UserRepository
	tokens      *utils.TokenManager
	adminEmails map[string]struct{}
}

// NewAuthService creates a new AuthService. Users registering with an email
// in adminEmails receive the admin role.
func NewAuthService(userRepo repository.UserRepository, tokens *utils.TokenManager, adminEmails []string) *AuthService {
	admins := make(map[string]struct{}, len(adminEmails))
	for _, e := range adminEmails {
		admins[strings.ToLower(strings.TrimSpace(e))] = struct{}{}
	}
	return &AuthService{
		userRepo:    userRepo,
		tokens:      tokens,
		adminEmails: admins,
	}
}

// RegisterInput represents the required information to create a new user.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// Register creates a new user. No session is issued.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	username := strings.TrimSpace(input.Username)
	email := strings.TrimSpace(input.Email)
	if username == "" {
		return nil, ErrUsernameRequired
	}
	if email == "" {
		return nil, ErrEmailRequired
	}
	if len(input.Password) < constants.MinPasswordLength {
		return nil, ErrPasswordTooShort
	}

	if _, err := s.userRepo.FindByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}

	if _, err := s.userRepo.FindByUsername(ctx, username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, ErrFailedToHashPassword
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hashedPassword),
		Role:         s.roleFor(email),
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

func (s *AuthService) roleFor(email string) models.Role {
	if _, ok := s.adminEmails[strings.ToLower(email)]; ok {
		return models.RoleAdmin
	}
	return models.RoleUser
}

// LoginInput holds the credentials for authentication.
type LoginInput struct {
	EmailOrUsername string
	Password        string
}

// LoginResult is the authenticated user and the session token proving it.
type LoginResult struct {
	User    *models.User
	Session utils.SessionToken
}

// Login verifies credentials and issues a session token.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	user, err := s.userRepo.FindByEmailOrUsername(ctx, input.EmailOrUsername)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	session, err := s.tokens.Issue(models.Actor{UserID: user.ID, Role: user.Role})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedToIssueSession, err)
	}

	return &LoginResult{User: user, Session: session}, nil
}

// Authenticate resolves a raw session token to the actor it was issued for.
func (s *AuthService) Authenticate(raw string) (models.Actor, error) {
	return s.tokens.Verify(raw)
}

// SessionMaxAge is the lifetime in seconds of tokens issued by Login.
func (s *AuthService) SessionMaxAge() int {
	return int(s.tokens.TTL().Seconds())
}

// CurrentUser retrieves a user by ID.
func (s *AuthService) CurrentUser(ctx context.Context, id string) (*models.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	return user, nil
}
