// Package authpw provides email/password authentication for trainers.
package authpw

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/store"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrMissingFields      = errors.New("first name, last name, email and password are required")
)

// TrainerStore defines the storage interface for auth
type TrainerStore interface {
	GetTrainerByEmail(ctx context.Context, email string) (store.Trainer, error)
	CreateTrainer(ctx context.Context, trainer store.Trainer) (store.Trainer, error)
}

// Service provides email/password authentication
type Service struct {
	store TrainerStore
	cost  int
}

func NewService(store TrainerStore) *Service {
	return &Service{store: store, cost: bcrypt.DefaultCost}
}

// SignUpRequest contains sign-up parameters
type SignUpRequest struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

// SignUp creates a new trainer account. The email is stored lowercased.
func (s *Service) SignUp(ctx context.Context, req SignUpRequest) (store.Trainer, error) {
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.FirstName == "" || req.LastName == "" || req.Email == "" || req.Password == "" {
		return store.Trainer{}, ErrMissingFields
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return store.Trainer{}, ErrInvalidEmail
	}
	if len(req.Password) < 8 {
		return store.Trainer{}, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return store.Trainer{}, fmt.Errorf("hash password: %w", err)
	}

	trainer, err := s.store.CreateTrainer(ctx, store.Trainer{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         "trainer",
	})
	if err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			return store.Trainer{}, err
		}
		return store.Trainer{}, fmt.Errorf("create trainer: %w", err)
	}
	return trainer, nil
}

// SignIn authenticates a trainer. Unknown emails and wrong passwords look the same.
func (s *Service) SignIn(ctx context.Context, email, password string) (store.Trainer, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return store.Trainer{}, ErrInvalidCredentials
	}

	trainer, err := s.store.GetTrainerByEmail(ctx, email)
	if err != nil {
		return store.Trainer{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(trainer.PasswordHash), []byte(password)); err != nil {
		return store.Trainer{}, ErrInvalidCredentials
	}
	return trainer, nil
}
