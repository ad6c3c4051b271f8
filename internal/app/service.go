package app

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/auth"
	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/authpw"
	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/config"
	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/export"
	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/gitrepo"
	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/intake"
	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/log"
	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/search"
	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/session"
	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/store"
	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/util"
)

// Session is the authenticated trainer behind a request.
type Session struct {
	Token        string
	RefreshToken string
	TrainerID    int64
	UserName     string
	Role         string
	JTI          string
	ExpiresAt    time.Time
}

type dataStore interface {
	Ping(ctx context.Context) error
	GetTrainerByID(ctx context.Context, trainerID int64) (store.Trainer, error)
	CreateClient(ctx context.Context, client store.Client) (store.Client, error)
	ListClients(ctx context.Context, trainerID int64) ([]store.Client, error)
	GetClient(ctx context.Context, trainerID, clientID int64) (store.Client, error)
	ListQuestions(ctx context.Context, trainerID int64) ([]store.Question, error)
	InsertTrainerQuestion(ctx context.Context, question store.Question) (store.Question, error)
	UpdateTrainerQuestion(ctx context.Context, trainerID int64, question store.Question) (store.Question, error)
	DeleteTrainerQuestion(ctx context.Context, trainerID, questionID int64) error
	LatestIntakeForm(ctx context.Context, trainerID, clientID int64) (store.FormWithClient, error)
	CreateIntakeForm(ctx context.Context, trainerID, clientID int64, formType string, revision int64) (store.IntakeForm, error)
	GetIntakeForm(ctx context.Context, trainerID, formID int64) (store.IntakeForm, error)
	SaveAnswers(ctx context.Context, trainerID, formID, revision int64, answers []store.Answer, allowCompleted bool) error
	UpdateFormStatus(ctx context.Context, trainerID, formID int64, status string, revision int64) error
	ListAnswers(ctx context.Context, trainerID, formID int64) ([]store.Answer, error)
	InsertSummary(ctx context.Context, summary store.ClientSummary) (store.ClientSummary, error)
	FinishSummary(ctx context.Context, summaryID int64, text string) error
	ListSummaries(ctx context.Context, trainerID, clientID int64) ([]store.ClientSummary, error)
}

type sessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash string, trainer store.Trainer, expiresAt time.Time) error
	TakeRefreshSession(ctx context.Context, tokenHash string) (session.TokenData, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
	RevokeAccessToken(ctx context.Context, jti string, expiresAt time.Time) error
	IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error)
	Ping(ctx context.Context) error
}

type authenticator interface {
	SignUp(ctx context.Context, req authpw.SignUpRequest) (store.Trainer, error)
	SignIn(ctx context.Context, email, password string) (store.Trainer, error)
}

type questionSearch interface {
	Search(ctx context.Context, q search.Query) search.Response
	IndexQuestion(q store.Question)
	DeleteQuestion(source string, questionID int64)
}

type exporter interface {
	Export(ctx context.Context, req export.Request) (*export.Result, error)
}

type templateRepo interface {
	Save(trainerID int64, tmpl gitrepo.Template, author string) (gitrepo.Revision, error)
	List(trainerID int64) ([]gitrepo.Summary, error)
	Get(trainerID int64, hash string) (gitrepo.Template, gitrepo.Revision, error)
}

type summaryQueue interface {
	Enqueue(ctx context.Context, job session.SummaryJob) error
}

type mailer interface {
	IsConfigured() bool
	SendWelcomeEmail(to, trainerName string) error
}

// DraftStorageFunc returns the server-side draft storage of one trainer.
type DraftStorageFunc func(trainerID int64) intake.Storage

// Deps are the optional collaborators of the service. Nil members disable
// the endpoints that need them.
type Deps struct {
	Sessions  sessionStore
	Auth      authenticator
	Search    questionSearch
	Exporter  exporter
	Templates templateRepo
	Queue     summaryQueue
	Mailer    mailer
	Drafts    DraftStorageFunc
}

type Service struct {
	cfg       config.Config
	store     dataStore
	sessions  sessionStore
	auth      authenticator
	search    questionSearch
	exporter  exporter
	templates templateRepo
	queue     summaryQueue
	mailer    mailer
	drafts    DraftStorageFunc
	validate  *validator.Validate
	now       func() time.Time
}

func New(cfg config.Config, dataStore dataStore, deps Deps) *Service {
	return &Service{
		cfg:       cfg,
		store:     dataStore,
		sessions:  deps.Sessions,
		auth:      deps.Auth,
		search:    deps.Search,
		exporter:  deps.Exporter,
		templates: deps.Templates,
		queue:     deps.Queue,
		mailer:    deps.Mailer,
		drafts:    deps.Drafts,
		validate:  newValidator(),
		now:       time.Now,
	}
}

// Ready reports the state of each backing service.
func (s *Service) Ready(ctx context.Context) map[string]error {
	checks := map[string]error{"database": s.store.Ping(ctx)}
	if s.sessions != nil {
		checks["redis"] = s.sessions.Ping(ctx)
	}
	return checks
}

func (s *Service) SignUp(ctx context.Context, req authpw.SignUpRequest) (Session, error) {
	if s.auth == nil {
		return Session{}, unavailable("AUTH_UNAVAILABLE", "Authentication service not configured")
	}
	trainer, err := s.auth.SignUp(ctx, req)
	switch {
	case errors.Is(err, store.ErrEmailTaken):
		return Session{}, domainError(http.StatusConflict, "EMAIL_EXISTS", "Email already registered", nil)
	case errors.Is(err, authpw.ErrMissingFields), errors.Is(err, authpw.ErrInvalidEmail), errors.Is(err, authpw.ErrWeakPassword):
		return Session{}, invalid(err.Error(), nil)
	case err != nil:
		return Session{}, err
	}

	if s.mailer != nil && s.mailer.IsConfigured() {
		go func(to, name string) {
			if err := s.mailer.SendWelcomeEmail(to, name); err != nil {
				log.WithError(err).Warn("auth: send welcome email")
			}
		}(trainer.Email, trainer.FirstName)
	}
	return s.issueSession(ctx, trainer)
}

func (s *Service) SignIn(ctx context.Context, email, password string) (Session, error) {
	if s.auth == nil {
		return Session{}, unavailable("AUTH_UNAVAILABLE", "Authentication service not configured")
	}
	trainer, err := s.auth.SignIn(ctx, email, password)
	if err != nil {
		return Session{}, domainError(http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil)
	}
	return s.issueSession(ctx, trainer)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	if s.sessions == nil || strings.TrimSpace(refreshToken) == "" {
		return Session{}, auth.ErrInvalidToken
	}
	data, err := s.sessions.TakeRefreshSession(ctx, auth.HashToken(refreshToken))
	if errors.Is(err, session.ErrSessionNotFound) {
		return Session{}, auth.ErrInvalidToken
	}
	if err != nil {
		return Session{}, err
	}
	trainer, err := s.store.GetTrainerByID(ctx, data.TrainerID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, trainer)
}

func (s *Service) issueSession(ctx context.Context, trainer store.Trainer) (Session, error) {
	claims := auth.NewClaims(trainer.ID, trainer.DisplayName(), trainer.Role, s.cfg.AccessTTL)
	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), claims)
	if err != nil {
		return Session{}, err
	}

	current := Session{
		Token:     token,
		TrainerID: trainer.ID,
		UserName:  trainer.DisplayName(),
		Role:      trainer.Role,
		JTI:       claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if s.sessions != nil {
		refresh := util.NewID("rft") + util.NewID("")
		if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), trainer, s.now().Add(s.cfg.RefreshTTL)); err != nil {
			return Session{}, err
		}
		current.RefreshToken = refresh
	}
	return current, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	if s.sessions != nil {
		revoked, err := s.sessions.IsAccessTokenRevoked(ctx, claims.ID)
		if err != nil {
			return Session{}, err
		}
		if revoked {
			return Session{}, auth.ErrInvalidToken
		}
	}
	trainerID, err := claims.TrainerID()
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:     token,
		TrainerID: trainerID,
		UserName:  claims.Name,
		Role:      claims.Role,
		JTI:       claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (s *Service) Logout(ctx context.Context, current Session, refreshToken string) error {
	if s.sessions == nil {
		return nil
	}
	if current.JTI != "" {
		_ = s.sessions.RevokeAccessToken(ctx, current.JTI, current.ExpiresAt)
	}
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

// validationError turns validator output into a 422 with one message per field.
func validationError(err error) error {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return invalid(err.Error(), nil)
	}
	details := make(map[string]string, len(fieldErrors))
	for _, fieldErr := range fieldErrors {
		details[fieldErr.Field()] = fieldErr.Tag()
	}
	return invalid("Invalid request", details)
}

// newValidator reports fields by their json names.
func newValidator() *validator.Validate {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return validate
}

func (s *Service) check(req any) error {
	if err := s.validate.Struct(req); err != nil {
		return validationError(err)
	}
	return nil
}
