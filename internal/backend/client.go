// Package backend talks to the SmartGains REST API on behalf of the intake workflow.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/intake"
	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/log"
)

var (
	ErrStaleRevision = errors.New("stale revision")
	ErrFormCompleted = errors.New("form already completed")
	ErrUnauthorized  = errors.New("unauthorized")
)

// APIError is a non-2xx response decoded from the server's {"code","error"} body.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api %d %s: %s", e.Status, e.Code, e.Message)
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrStaleRevision:
		return e.Code == "STALE_REVISION"
	case ErrFormCompleted:
		return e.Code == "FORM_COMPLETED"
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	}
	return false
}

// Client implements intake.Backend over HTTP.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) { c.http = client }
}

func WithToken(token string) Option {
	return func(c *Client) { c.token = strings.TrimSpace(token) }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ intake.Backend = (*Client)(nil)

type wireAnswer struct {
	QuestionID     int64         `json:"question_id"`
	QuestionSource intake.Source `json:"question_source"`
	Answer         intake.Answer `json:"answer"`
	Other          string        `json:"other,omitempty"`
}

func toWire(records []intake.AnswerRecord) []wireAnswer {
	out := make([]wireAnswer, 0, len(records))
	for _, record := range records {
		out = append(out, wireAnswer(record))
	}
	return out
}

func (c *Client) UserQuestions(ctx context.Context) ([]intake.Question, error) {
	var questions []intake.Question
	if err := c.do(ctx, http.MethodGet, "/api/get_user_questions", nil, &questions); err != nil {
		return nil, err
	}
	return questions, nil
}

func (c *Client) CheckIntakeForm(ctx context.Context, clientID int64) (intake.FormCheck, error) {
	var body struct {
		FormExists      bool              `json:"form_exists"`
		FormID          int64             `json:"form_id"`
		Status          intake.FormStatus `json:"status"`
		ClientFirstName string            `json:"client_first_name"`
		ClientLastName  string            `json:"client_last_name"`
	}
	path := "/api/check_intake_form/" + strconv.FormatInt(clientID, 10)
	if err := c.do(ctx, http.MethodGet, path, nil, &body); err != nil {
		return intake.FormCheck{}, err
	}
	return intake.FormCheck{
		Exists:          body.FormExists,
		FormID:          body.FormID,
		Status:          body.Status,
		ClientFirstName: body.ClientFirstName,
		ClientLastName:  body.ClientLastName,
	}, nil
}

func (c *Client) SavedAnswers(ctx context.Context, clientID, formID int64) ([]intake.AnswerRecord, error) {
	query := url.Values{}
	query.Set("client_id", strconv.FormatInt(clientID, 10))
	query.Set("form_id", strconv.FormatInt(formID, 10))

	var body struct {
		Answers []wireAnswer `json:"answers"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/get_saved_answers?"+query.Encode(), nil, &body); err != nil {
		return nil, err
	}
	records := make([]intake.AnswerRecord, 0, len(body.Answers))
	for _, answer := range body.Answers {
		records = append(records, intake.AnswerRecord(answer))
	}
	return records, nil
}

func (c *Client) AddIntakeForm(ctx context.Context, clientID int64, formType string) (int64, error) {
	payload := map[string]any{"client_id": clientID, "form_type": formType}
	var body struct {
		FormID int64 `json:"form_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/add_intake_form", payload, &body); err != nil {
		return 0, err
	}
	if body.FormID <= 0 {
		return 0, fmt.Errorf("add intake form: server returned no form_id")
	}
	return body.FormID, nil
}

func (c *Client) AutoSave(ctx context.Context, req intake.AutoSaveRequest) (int64, error) {
	payload := map[string]any{
		"client_id": req.ClientID,
		"form_data": map[string]any{"form_id": req.FormID, "form_type": req.FormType},
		"answers":   toWire(req.Answers),
		"revision":  req.Revision,
	}
	var body struct {
		FormID int64 `json:"form_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/auto_save_intake_form", payload, &body); err != nil {
		return 0, err
	}
	return body.FormID, nil
}

func (c *Client) UpdateFormStatus(ctx context.Context, formID int64, status intake.FormStatus, revision int64) error {
	payload := map[string]any{"form_id": formID, "status": status, "revision": revision}
	return c.do(ctx, http.MethodPost, "/api/update_intake_form_status", payload, nil)
}

func (c *Client) FinalSave(ctx context.Context, req intake.FinalSaveRequest) error {
	payload := map[string]any{
		"form_id":  req.FormID,
		"answers":  toWire(req.Answers),
		"revision": req.Revision,
	}
	return c.do(ctx, http.MethodPost, "/api/final_intake_save", payload, nil)
}

func (c *Client) CreateClientSummary(ctx context.Context, req intake.SummaryRequest) error {
	payload := map[string]any{"form_id": req.FormID, "data": req.Data}
	path := "/api/create_client_summary/" + strconv.FormatInt(req.ClientID, 10)
	return c.do(ctx, http.MethodPost, path, payload, nil)
}

func (c *Client) do(ctx context.Context, method, path string, payload, target any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	log.WithFields(log.Fields{
		"request_id":  requestID,
		"method":      method,
		"path":        req.URL.Path,
		"status":      resp.StatusCode,
		"duration_ms": time.Since(started).Milliseconds(),
	}).Debug("api call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if target == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Code: "HTTP_" + strconv.Itoa(resp.StatusCode)}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body struct {
		Code  string `json:"code"`
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Code != "" {
		apiErr.Code = body.Code
		apiErr.Message = body.Error
	} else {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
