package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// Ping verifies the database connection is alive
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (s *PostgresStore) CreateTrainer(ctx context.Context, trainer Trainer) (Trainer, error) {
	if trainer.Role == "" {
		trainer.Role = "trainer"
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO trainers (first_name, last_name, email, password_hash, role)
		VALUES ($1, $2, LOWER($3), $4, $5)
		RETURNING id, email, created_at, updated_at
	`, trainer.FirstName, trainer.LastName, trainer.Email, trainer.PasswordHash, trainer.Role).
		Scan(&trainer.ID, &trainer.Email, &trainer.CreatedAt, &trainer.UpdatedAt)
	if isUniqueViolation(err) {
		return Trainer{}, ErrEmailTaken
	}
	if err != nil {
		return Trainer{}, fmt.Errorf("insert trainer: %w", err)
	}
	return trainer, nil
}

const trainerColumns = `id, first_name, last_name, email, password_hash, role, created_at, updated_at`

func scanTrainer(row interface{ Scan(...any) error }) (Trainer, error) {
	var trainer Trainer
	err := row.Scan(&trainer.ID, &trainer.FirstName, &trainer.LastName, &trainer.Email, &trainer.PasswordHash, &trainer.Role, &trainer.CreatedAt, &trainer.UpdatedAt)
	return trainer, err
}

func (s *PostgresStore) GetTrainerByEmail(ctx context.Context, email string) (Trainer, error) {
	return scanTrainer(s.db.QueryRowContext(ctx, `SELECT `+trainerColumns+` FROM trainers WHERE email=LOWER($1)`, strings.TrimSpace(email)))
}

func (s *PostgresStore) GetTrainerByID(ctx context.Context, trainerID int64) (Trainer, error) {
	return scanTrainer(s.db.QueryRowContext(ctx, `SELECT `+trainerColumns+` FROM trainers WHERE id=$1`, trainerID))
}

func (s *PostgresStore) CreateClient(ctx context.Context, client Client) (Client, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO clients (trainer_id, first_name, last_name, email, phone)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, client.TrainerID, client.FirstName, client.LastName, client.Email, client.Phone).Scan(&client.ID, &client.CreatedAt)
	if err != nil {
		return Client{}, fmt.Errorf("insert client: %w", err)
	}
	return client, nil
}

func (s *PostgresStore) ListClients(ctx context.Context, trainerID int64) ([]Client, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, trainer_id, first_name, last_name, email, phone, created_at
		FROM clients
		WHERE trainer_id=$1
		ORDER BY last_name, first_name, id
	`, trainerID)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	items := make([]Client, 0)
	for rows.Next() {
		var item Client
		if err := rows.Scan(&item.ID, &item.TrainerID, &item.FirstName, &item.LastName, &item.Email, &item.Phone, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate clients: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetClient(ctx context.Context, trainerID, clientID int64) (Client, error) {
	var item Client
	err := s.db.QueryRowContext(ctx, `
		SELECT id, trainer_id, first_name, last_name, email, phone, created_at
		FROM clients
		WHERE id=$1 AND trainer_id=$2
	`, clientID, trainerID).Scan(&item.ID, &item.TrainerID, &item.FirstName, &item.LastName, &item.Email, &item.Phone, &item.CreatedAt)
	if err != nil {
		return Client{}, err
	}
	return item, nil
}

const questionUnion = `
	SELECT id, 'global' AS source, NULL::BIGINT AS trainer_id, question_text, question_type, options, category, is_default, updated_at
	FROM global_form_questions
	UNION ALL
	SELECT id, 'trainer' AS source, trainer_id, question_text, question_type, options, category, is_default, updated_at
	FROM trainer_intake_questions
`

func scanQuestions(rows *sql.Rows) ([]Question, error) {
	defer rows.Close()
	items := make([]Question, 0)
	for rows.Next() {
		var (
			item      Question
			trainerID sql.NullInt64
			options   []byte
		)
		if err := rows.Scan(&item.ID, &item.Source, &trainerID, &item.Text, &item.Type, &options, &item.Category, &item.IsDefault, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		if trainerID.Valid {
			id := trainerID.Int64
			item.TrainerID = &id
		}
		if len(options) > 0 {
			if err := json.Unmarshal(options, &item.Options); err != nil {
				return nil, fmt.Errorf("decode question options: %w", err)
			}
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate questions: %w", err)
	}
	return items, nil
}

func encodeOptions(options []string) (string, error) {
	if options == nil {
		options = []string{}
	}
	encoded, err := json.Marshal(options)
	if err != nil {
		return "", fmt.Errorf("encode options: %w", err)
	}
	return string(encoded), nil
}

// ListQuestions returns the global catalog plus the trainer's own questions.
func (s *PostgresStore) ListQuestions(ctx context.Context, trainerID int64) ([]Question, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT * FROM (`+questionUnion+`) q
		WHERE q.source = 'global' OR q.trainer_id = $1
		ORDER BY q.source, q.id
	`, trainerID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	return scanQuestions(rows)
}

// ListAllQuestions returns every question of every trainer, for reindexing.
func (s *PostgresStore) ListAllQuestions(ctx context.Context) ([]Question, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT * FROM (`+questionUnion+`) q ORDER BY q.source, q.id`)
	if err != nil {
		return nil, fmt.Errorf("list all questions: %w", err)
	}
	return scanQuestions(rows)
}

// SearchQuestions matches question text with ILIKE. Used when the search index is down.
func (s *PostgresStore) SearchQuestions(ctx context.Context, trainerID int64, query, category string, limit int) ([]Question, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT * FROM (`+questionUnion+`) q
		WHERE (q.source = 'global' OR q.trainer_id = $1)
			AND q.question_text ILIKE '%' || $2 || '%'
			AND ($3 = '' OR q.category = $3)
		ORDER BY q.source, q.id
		LIMIT $4
	`, trainerID, strings.TrimSpace(query), category, limit)
	if err != nil {
		return nil, fmt.Errorf("search questions: %w", err)
	}
	return scanQuestions(rows)
}

func (s *PostgresStore) InsertTrainerQuestion(ctx context.Context, question Question) (Question, error) {
	if question.TrainerID == nil {
		return Question{}, errors.New("insert trainer question: trainer id required")
	}
	options, err := encodeOptions(question.Options)
	if err != nil {
		return Question{}, err
	}
	question.Source = SourceTrainer
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO trainer_intake_questions (trainer_id, question_text, question_type, options, category, is_default)
		VALUES ($1, $2, $3, $4::jsonb, $5, $6)
		RETURNING id, updated_at
	`, *question.TrainerID, question.Text, question.Type, options, question.Category, question.IsDefault).Scan(&question.ID, &question.UpdatedAt)
	if err != nil {
		return Question{}, fmt.Errorf("insert trainer question: %w", err)
	}
	return question, nil
}

func (s *PostgresStore) UpdateTrainerQuestion(ctx context.Context, trainerID int64, question Question) (Question, error) {
	options, err := encodeOptions(question.Options)
	if err != nil {
		return Question{}, err
	}
	err = s.db.QueryRowContext(ctx, `
		UPDATE trainer_intake_questions
		SET question_text=$3, question_type=$4, options=$5::jsonb, category=$6, is_default=$7, updated_at=NOW()
		WHERE id=$1 AND trainer_id=$2
		RETURNING updated_at
	`, question.ID, trainerID, question.Text, question.Type, options, question.Category, question.IsDefault).Scan(&question.UpdatedAt)
	if err != nil {
		return Question{}, err
	}
	question.Source = SourceTrainer
	question.TrainerID = &trainerID
	return question, nil
}

func (s *PostgresStore) DeleteTrainerQuestion(ctx context.Context, trainerID, questionID int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM trainer_intake_questions WHERE id=$1 AND trainer_id=$2`, questionID, trainerID)
	if err != nil {
		return fmt.Errorf("delete trainer question: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete trainer question: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpsertGlobalQuestion inserts or refreshes a global question keyed by its text.
func (s *PostgresStore) UpsertGlobalQuestion(ctx context.Context, question Question) (Question, error) {
	options, err := encodeOptions(question.Options)
	if err != nil {
		return Question{}, err
	}
	question.Source = SourceGlobal
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO global_form_questions (question_text, question_type, options, category, is_default)
		VALUES ($1, $2, $3::jsonb, $4, $5)
		ON CONFLICT (question_text) DO UPDATE
		SET question_type=EXCLUDED.question_type, options=EXCLUDED.options, category=EXCLUDED.category,
			is_default=EXCLUDED.is_default, updated_at=NOW()
		RETURNING id, updated_at
	`, question.Text, question.Type, options, question.Category, question.IsDefault).Scan(&question.ID, &question.UpdatedAt)
	if err != nil {
		return Question{}, fmt.Errorf("upsert global question: %w", err)
	}
	return question, nil
}

// LatestIntakeForm returns the client's name and most recent form, if any.
// sql.ErrNoRows means the client does not belong to the trainer.
func (s *PostgresStore) LatestIntakeForm(ctx context.Context, trainerID, clientID int64) (FormWithClient, error) {
	var (
		result    FormWithClient
		formID    sql.NullInt64
		formType  sql.NullString
		status    sql.NullString
		revision  sql.NullInt64
		completed sql.NullTime
		createdAt sql.NullTime
		updatedAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT c.first_name, c.last_name, f.id, f.form_type, f.status, f.revision, f.completed_at, f.created_at, f.updated_at
		FROM clients c
		LEFT JOIN LATERAL (
			SELECT id, form_type, status, revision, completed_at, created_at, updated_at
			FROM intake_forms
			WHERE client_id = c.id
			ORDER BY created_at DESC, id DESC
			LIMIT 1
		) f ON TRUE
		WHERE c.id=$1 AND c.trainer_id=$2
	`, clientID, trainerID).Scan(&result.ClientFirstName, &result.ClientLastName, &formID, &formType, &status, &revision, &completed, &createdAt, &updatedAt)
	if err != nil {
		return FormWithClient{}, err
	}
	if formID.Valid {
		form := &IntakeForm{
			ID:        formID.Int64,
			TrainerID: trainerID,
			ClientID:  clientID,
			FormType:  formType.String,
			Status:    status.String,
			Revision:  revision.Int64,
			CreatedAt: createdAt.Time,
			UpdatedAt: updatedAt.Time,
		}
		if completed.Valid {
			at := completed.Time
			form.CompletedAt = &at
		}
		result.Form = form
	}
	return result, nil
}

// CreateIntakeForm allocates an in_progress form. sql.ErrNoRows means the
// client does not belong to the trainer.
func (s *PostgresStore) CreateIntakeForm(ctx context.Context, trainerID, clientID int64, formType string, revision int64) (IntakeForm, error) {
	form := IntakeForm{TrainerID: trainerID, ClientID: clientID, FormType: formType, Status: FormInProgress, Revision: revision}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO intake_forms (trainer_id, client_id, form_type, status, revision)
		SELECT $1, c.id, $3, 'in_progress', $4
		FROM clients c
		WHERE c.id=$2 AND c.trainer_id=$1
		RETURNING id, created_at, updated_at
	`, trainerID, clientID, formType, revision).Scan(&form.ID, &form.CreatedAt, &form.UpdatedAt)
	if err != nil {
		return IntakeForm{}, err
	}
	return form, nil
}

func (s *PostgresStore) GetIntakeForm(ctx context.Context, trainerID, formID int64) (IntakeForm, error) {
	var (
		form      IntakeForm
		completed sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, trainer_id, client_id, form_type, status, revision, completed_at, created_at, updated_at
		FROM intake_forms
		WHERE id=$1 AND trainer_id=$2
	`, formID, trainerID).Scan(&form.ID, &form.TrainerID, &form.ClientID, &form.FormType, &form.Status, &form.Revision, &completed, &form.CreatedAt, &form.UpdatedAt)
	if err != nil {
		return IntakeForm{}, err
	}
	if completed.Valid {
		at := completed.Time
		form.CompletedAt = &at
	}
	return form, nil
}

// lockForm reads the form row for update inside tx and applies the revision rule.
func lockForm(ctx context.Context, tx *sql.Tx, trainerID, formID, revision int64) (string, error) {
	var (
		status  string
		current int64
	)
	err := tx.QueryRowContext(ctx, `
		SELECT status, revision FROM intake_forms WHERE id=$1 AND trainer_id=$2 FOR UPDATE
	`, formID, trainerID).Scan(&status, &current)
	if err != nil {
		return "", err
	}
	if revision < current {
		return status, ErrStaleRevision
	}
	return status, nil
}

// SaveAnswers upserts answers keyed by (form, source, question). Autosaves
// (allowCompleted=false) are refused once the form is completed.
func (s *PostgresStore) SaveAnswers(ctx context.Context, trainerID, formID, revision int64, answers []Answer, allowCompleted bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save answers: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	status, err := lockForm(ctx, tx, trainerID, formID, revision)
	if status == FormCompleted && !allowCompleted {
		return ErrFormCompleted
	}
	if err != nil {
		return err
	}

	for _, answer := range answers {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO intake_form_answers (form_id, question_source, question_id, answer, other)
			VALUES ($1, $2, $3, $4::jsonb, $5)
			ON CONFLICT (form_id, question_source, question_id) DO UPDATE
			SET answer=EXCLUDED.answer, other=EXCLUDED.other, updated_at=NOW()
		`, formID, answer.QuestionSource, answer.QuestionID, string(answer.Value), answer.Other); err != nil {
			return fmt.Errorf("upsert answer %s:%d: %w", answer.QuestionSource, answer.QuestionID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE intake_forms SET revision=GREATEST(revision, $2), updated_at=NOW() WHERE id=$1
	`, formID, revision); err != nil {
		return fmt.Errorf("bump form revision: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save answers: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateFormStatus(ctx context.Context, trainerID, formID int64, status string, revision int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update status: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := lockForm(ctx, tx, trainerID, formID, revision); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE intake_forms
		SET status=$2,
			revision=GREATEST(revision, $3),
			completed_at=CASE WHEN $2 = 'completed' THEN COALESCE(completed_at, NOW()) ELSE NULL END,
			updated_at=NOW()
		WHERE id=$1
	`, formID, status, revision); err != nil {
		return fmt.Errorf("update form status: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update status: %w", err)
	}
	return nil
}

// ListAnswers returns a form's answers with their question text.
func (s *PostgresStore) ListAnswers(ctx context.Context, trainerID, formID int64) ([]Answer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.question_id, a.question_source, a.answer, a.other, COALESCE(g.question_text, t.question_text, '')
		FROM intake_form_answers a
		JOIN intake_forms f ON f.id = a.form_id
		LEFT JOIN global_form_questions g ON a.question_source = 'global' AND g.id = a.question_id
		LEFT JOIN trainer_intake_questions t ON a.question_source = 'trainer' AND t.id = a.question_id
		WHERE a.form_id=$1 AND f.trainer_id=$2
		ORDER BY a.created_at, a.question_source, a.question_id
	`, formID, trainerID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	defer rows.Close()

	items := make([]Answer, 0)
	for rows.Next() {
		var (
			item  Answer
			value []byte
		)
		if err := rows.Scan(&item.QuestionID, &item.QuestionSource, &value, &item.Other, &item.QuestionText); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		item.Value = json.RawMessage(value)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate answers: %w", err)
	}
	return items, nil
}

// DeleteStaleForms removes in_progress forms that never received an answer.
func (s *PostgresStore) DeleteStaleForms(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM intake_forms f
		WHERE f.status = 'in_progress'
			AND f.updated_at < $1
			AND NOT EXISTS (SELECT 1 FROM intake_form_answers a WHERE a.form_id = f.id)
	`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("delete stale forms: %w", err)
	}
	return result.RowsAffected()
}

func (s *PostgresStore) InsertSummary(ctx context.Context, summary ClientSummary) (ClientSummary, error) {
	if summary.SummaryType == "" {
		summary.SummaryType = "intake"
	}
	summary.Status = SummaryPending
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO client_summaries (trainer_id, client_id, form_id, summary_type, summary_prompt, status)
		VALUES ($1, $2, $3, $4, $5, 'pending')
		RETURNING id, created_at, updated_at
	`, summary.TrainerID, summary.ClientID, summary.FormID, summary.SummaryType, summary.Prompt).Scan(&summary.ID, &summary.CreatedAt, &summary.UpdatedAt)
	if err != nil {
		return ClientSummary{}, fmt.Errorf("insert summary: %w", err)
	}
	return summary, nil
}

// FinishSummary stores the generated text, or marks the summary failed when text is empty.
func (s *PostgresStore) FinishSummary(ctx context.Context, summaryID int64, text string) error {
	status := SummaryReady
	if strings.TrimSpace(text) == "" {
		status = SummaryFailed
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE client_summaries SET summary_text=$2, status=$3, updated_at=NOW() WHERE id=$1
	`, summaryID, text, status)
	if err != nil {
		return fmt.Errorf("finish summary: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

const summaryColumns = `id, trainer_id, client_id, form_id, summary_type, summary_prompt, summary_text, status, created_at, updated_at`

func scanSummary(row interface{ Scan(...any) error }) (ClientSummary, error) {
	var (
		item   ClientSummary
		formID sql.NullInt64
	)
	if err := row.Scan(&item.ID, &item.TrainerID, &item.ClientID, &formID, &item.SummaryType, &item.Prompt, &item.Text, &item.Status, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return ClientSummary{}, err
	}
	if formID.Valid {
		id := formID.Int64
		item.FormID = &id
	}
	return item, nil
}

func (s *PostgresStore) GetSummary(ctx context.Context, summaryID int64) (ClientSummary, error) {
	return scanSummary(s.db.QueryRowContext(ctx, `SELECT `+summaryColumns+` FROM client_summaries WHERE id=$1`, summaryID))
}

func (s *PostgresStore) ListSummaries(ctx context.Context, trainerID, clientID int64) ([]ClientSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+summaryColumns+`
		FROM client_summaries
		WHERE trainer_id=$1 AND client_id=$2
		ORDER BY created_at DESC, id DESC
	`, trainerID, clientID)
	if err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}
	defer rows.Close()

	items := make([]ClientSummary, 0)
	for rows.Next() {
		item, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate summaries: %w", err)
	}
	return items, nil
}
