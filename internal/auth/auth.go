package auth

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/tasklane/todo-api/internal/apperr"
	"github.com/tasklane/todo-api/internal/models"
)

const TokenType = "Bearer"

var errBadCredentials = apperr.Unauthorized("Invalid email or password.")

// UserStore is the persistence the auth service needs
type UserStore interface {
	CreateUser(ctx context.Context, name, email, passwordHash string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

type RegisterRequest struct {
	Name                 string `json:"name" validate:"required,alphaspace,min=2,max=50"`
	Email                string `json:"email" validate:"required,email,max=254"`
	Password             string `json:"password" validate:"required,min=8,max=255"`
	PasswordConfirmation string `json:"password_confirmation" validate:"required,eqfield=Password"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=255"`
}

// TokenPair is returned on register and login
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// RefreshedToken is returned when a refresh token is exchanged
type RefreshedToken struct {
	Message     string `json:"message"`
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Service registers and authenticates users and mints their tokens
type Service struct {
	users      UserStore
	tokens     *TokenManager
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewService(users UserStore, tokens *TokenManager, accessTTL, refreshTTL time.Duration) *Service {
	return &Service{
		users:      users,
		tokens:     tokens,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// Register stores a new user and returns their first token pair. The request
// must already be validated.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*TokenPair, error) {
	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.CreateUser(ctx, req.Name, req.Email, hash)
	if err != nil {
		return nil, err
	}

	log.Printf("[AUTH] Registered user %d", user.ID)
	return s.issuePair(user)
}

// Login checks credentials and returns a fresh token pair. Unknown emails and
// wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*TokenPair, error) {
	user, err := s.users.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if apperr.Code(err) == http.StatusNotFound {
			return nil, errBadCredentials
		}
		return nil, err
	}

	if !CheckPassword(user.Password, req.Password) {
		log.Printf("[AUTH] Failed login for user %d", user.ID)
		return nil, errBadCredentials
	}

	return s.issuePair(user)
}

// Refresh mints a new access token for the subject of a refresh token.
func (s *Service) Refresh(claims *TokenClaims) (*RefreshedToken, error) {
	id, err := claims.UserID()
	if err != nil {
		return nil, apperr.Unauthorized("Unauthorized")
	}

	access, err := s.tokens.Issue(Identity{ID: id, Name: claims.Name}, s.accessTTL, true)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	return &RefreshedToken{
		Message:     "Token refreshed",
		AccessToken: access,
		TokenType:   TokenType,
		ExpiresIn:   int64(s.accessTTL.Seconds()),
	}, nil
}

func (s *Service) issuePair(user *models.User) (*TokenPair, error) {
	identity := Identity{ID: user.ID, Name: user.Name}

	access, err := s.tokens.Issue(identity, s.accessTTL, true)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := s.tokens.Issue(identity, s.refreshTTL, false)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    TokenType,
		ExpiresIn:    int64(s.accessTTL.Seconds()),
	}, nil
}
