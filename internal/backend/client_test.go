package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/intake"
)

func TestAutoSaveSendsWireShape(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/auto_save_intake_form" || r.Method != http.MethodPost {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Fatalf("missing bearer token")
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(map[string]any{"form_id": 77})
	}))
	defer server.Close()

	client := New(server.URL, WithToken("tok"))
	formID, err := client.AutoSave(context.Background(), intake.AutoSaveRequest{
		ClientID: 5,
		FormType: intake.FormTypeIntake,
		Answers: []intake.AnswerRecord{
			{QuestionID: 3, QuestionSource: intake.SourceGlobal, Answer: intake.ChoiceAnswer("A", "Other"), Other: "Swim"},
		},
		Revision: 10,
	})
	if err != nil {
		t.Fatalf("AutoSave() error = %v", err)
	}
	if formID != 77 {
		t.Fatalf("AutoSave() form id = %d, want 77", formID)
	}

	formData := got["form_data"].(map[string]any)
	if formData["form_id"] != nil || formData["form_type"] != "intake" {
		t.Fatalf("unexpected form_data: %#v", formData)
	}
	answers := got["answers"].([]any)
	first := answers[0].(map[string]any)
	if first["question_source"] != "global" || first["other"] != "Swim" {
		t.Fatalf("unexpected answer: %#v", first)
	}
	if list, ok := first["answer"].([]any); !ok || len(list) != 2 {
		t.Fatalf("checkbox answer should be an array, got %#v", first["answer"])
	}
}

func TestCheckIntakeFormDecodesBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/check_intake_form/9" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"form_exists":true,"form_id":4,"status":"in_progress","client_first_name":"Ana","client_last_name":"Ruiz"}`))
	}))
	defer server.Close()

	check, err := New(server.URL).CheckIntakeForm(context.Background(), 9)
	if err != nil {
		t.Fatalf("CheckIntakeForm() error = %v", err)
	}
	if !check.Exists || check.FormID != 4 || check.Status != intake.StatusInProgress || check.ClientFirstName != "Ana" {
		t.Fatalf("unexpected check: %+v", check)
	}
}

func TestSavedAnswersSendsQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("client_id") != "2" || r.URL.Query().Get("form_id") != "8" {
			t.Fatalf("unexpected query %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"answers":[{"question_id":1,"question_source":"trainer","answer":"yes"}]}`))
	}))
	defer server.Close()

	records, err := New(server.URL).SavedAnswers(context.Background(), 2, 8)
	if err != nil {
		t.Fatalf("SavedAnswers() error = %v", err)
	}
	if len(records) != 1 || records[0].QuestionSource != intake.SourceTrainer || records[0].Answer.Text != "yes" {
		t.Fatalf("unexpected records: %+v", records)
	}
}

func TestErrorsMapToSentinels(t *testing.T) {
	cases := []struct {
		status int
		body   string
		want   error
	}{
		{http.StatusConflict, `{"code":"STALE_REVISION","error":"stale"}`, ErrStaleRevision},
		{http.StatusConflict, `{"code":"FORM_COMPLETED","error":"done"}`, ErrFormCompleted},
		{http.StatusUnauthorized, `{"code":"UNAUTHORIZED","error":"Unauthorized"}`, ErrUnauthorized},
	}
	for _, tc := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(tc.body))
		}))
		err := New(server.URL).UpdateFormStatus(context.Background(), 1, intake.StatusCompleted, 3)
		server.Close()
		if !errors.Is(err, tc.want) {
			t.Fatalf("status %d: error = %v, want %v", tc.status, err, tc.want)
		}
	}
}

func TestPlainTextErrorKeepsBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer server.Close()

	err := New(server.URL).FinalSave(context.Background(), intake.FinalSaveRequest{FormID: 1})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusBadGateway || apiErr.Message != "boom" || apiErr.Code != "HTTP_502" {
		t.Fatalf("unexpected error: %+v", apiErr)
	}
}

func TestAddIntakeFormRequiresID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	if _, err := New(server.URL).AddIntakeForm(context.Background(), 1, intake.FormTypeIntake); err == nil {
		t.Fatal("expected error for missing form_id")
	}
}

func TestRemoteStorageRoundTrip(t *testing.T) {
	values := map[string]string{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Path[len("/api/drafts/"):]
		switch r.Method {
		case http.MethodGet:
			value, ok := values[key]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`{"code":"NOT_FOUND","error":"Not found"}`))
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]string{"value": value})
		case http.MethodPut:
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			values[key] = body["value"]
			w.WriteHeader(http.StatusNoContent)
		case http.MethodDelete:
			delete(values, key)
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer server.Close()

	storage := NewRemoteStorage(New(server.URL))
	ctx := context.Background()

	if _, ok, err := storage.Get(ctx, "formId_3"); ok || err != nil {
		t.Fatalf("Get(missing) ok=%v err=%v", ok, err)
	}
	if err := storage.Set(ctx, "formId_3", "42"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if value, ok, err := storage.Get(ctx, "formId_3"); !ok || err != nil || value != "42" {
		t.Fatalf("Get() = %q, %v, %v", value, ok, err)
	}
	if err := storage.Remove(ctx, "formId_3"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, ok, _ := storage.Get(ctx, "formId_3"); ok {
		t.Fatal("key survived Remove")
	}
}

func TestSignInKeepsAccessToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/signin":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["email"] != "coach@example.com" || body["password"] != "secret-pass" {
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]any{"code": "INVALID_CREDENTIALS", "error": "Invalid email or password"})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"accessToken": "acc", "refreshToken": "ref", "trainerId": 4, "userName": "Coach Carter"})
		case "/api/existing_clients":
			if r.Header.Get("Authorization") != "Bearer acc" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"clients": []map[string]any{{"id": 2, "first_name": "Ana", "last_name": "Ruiz"}}})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client := New(server.URL)
	if _, err := client.SignIn(context.Background(), "coach@example.com", "wrong"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("SignIn() with bad password error = %v, want ErrUnauthorized", err)
	}
	creds, err := client.SignIn(context.Background(), " coach@example.com ", "secret-pass")
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	if creds.TrainerID != 4 || creds.UserName != "Coach Carter" {
		t.Fatalf("unexpected credentials %+v", creds)
	}
	clients, err := client.ListClients(context.Background())
	if err != nil {
		t.Fatalf("ListClients() error = %v", err)
	}
	if len(clients) != 1 || clients[0].Name() != "Ana Ruiz" {
		t.Fatalf("unexpected clients %+v", clients)
	}
}
