package authpw

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/store"
)

// mockTrainerStore is a map-backed TrainerStore for testing
type mockTrainerStore struct {
	byEmail map[string]store.Trainer
	nextID  int64
}

func newMockTrainerStore() *mockTrainerStore {
	return &mockTrainerStore{byEmail: make(map[string]store.Trainer)}
}

func (m *mockTrainerStore) GetTrainerByEmail(_ context.Context, email string) (store.Trainer, error) {
	if trainer, ok := m.byEmail[email]; ok {
		return trainer, nil
	}
	return store.Trainer{}, sql.ErrNoRows
}

func (m *mockTrainerStore) CreateTrainer(_ context.Context, trainer store.Trainer) (store.Trainer, error) {
	if _, ok := m.byEmail[trainer.Email]; ok {
		return store.Trainer{}, store.ErrEmailTaken
	}
	m.nextID++
	trainer.ID = m.nextID
	m.byEmail[trainer.Email] = trainer
	return trainer, nil
}

func newTestService() (*Service, *mockTrainerStore) {
	st := newMockTrainerStore()
	svc := NewService(st)
	svc.cost = bcrypt.MinCost
	return svc, st
}

func TestSignUp(t *testing.T) {
	svc, st := newTestService()
	ctx := context.Background()

	trainer, err := svc.SignUp(ctx, SignUpRequest{
		FirstName: " Sam ",
		LastName:  "Lee",
		Email:     "Sam@Example.com",
		Password:  "password123",
	})
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	if trainer.ID == 0 || trainer.FirstName != "Sam" || trainer.Email != "sam@example.com" {
		t.Fatalf("unexpected trainer: %+v", trainer)
	}
	if trainer.PasswordHash == "password123" {
		t.Fatal("password stored in clear text")
	}
	if _, ok := st.byEmail["sam@example.com"]; !ok {
		t.Fatal("trainer not stored under the normalized email")
	}
}

func TestSignUpValidation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	tests := []struct {
		name string
		req  SignUpRequest
		want error
	}{
		{"missing name", SignUpRequest{Email: "a@b.co", Password: "password123"}, ErrMissingFields},
		{"bad email", SignUpRequest{FirstName: "A", LastName: "B", Email: "nope", Password: "password123"}, ErrInvalidEmail},
		{"short password", SignUpRequest{FirstName: "A", LastName: "B", Email: "a@b.co", Password: "short"}, ErrWeakPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.SignUp(ctx, tt.req); !errors.Is(err, tt.want) {
				t.Fatalf("SignUp() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSignUpDuplicateEmail(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	req := SignUpRequest{FirstName: "Sam", LastName: "Lee", Email: "sam@example.com", Password: "password123"}
	if _, err := svc.SignUp(ctx, req); err != nil {
		t.Fatalf("first SignUp failed: %v", err)
	}
	if _, err := svc.SignUp(ctx, req); !errors.Is(err, store.ErrEmailTaken) {
		t.Fatalf("duplicate SignUp() error = %v, want ErrEmailTaken", err)
	}
}

func TestSignIn(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	if _, err := svc.SignUp(ctx, SignUpRequest{FirstName: "Sam", LastName: "Lee", Email: "sam@example.com", Password: "password123"}); err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}

	trainer, err := svc.SignIn(ctx, "SAM@example.com", "password123")
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if trainer.Email != "sam@example.com" {
		t.Fatalf("unexpected trainer: %+v", trainer)
	}

	if _, err := svc.SignIn(ctx, "sam@example.com", "wrongpassword"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password error = %v", err)
	}
	if _, err := svc.SignIn(ctx, "nobody@example.com", "password123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown email error = %v", err)
	}
}
