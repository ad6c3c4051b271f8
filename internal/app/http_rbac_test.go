package app

import (
	"net/http"
	"testing"
)

func TestAssistantCannotManageClientsOrQuestions(t *testing.T) {
	handler := NewHTTPServer(newTestService(&fakeStore{}, Deps{}), "*").Handler()
	token := issueTestToken(t, 1, "assistant")

	tests := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{name: "add client", method: http.MethodPost, path: "/api/add_client", body: `{"first_name":"Ana","last_name":"Ruiz"}`},
		{name: "add question", method: http.MethodPost, path: "/api/add_user_question", body: `{"question_text":"Sleep?","question_type":"text"}`},
		{name: "delete question", method: http.MethodDelete, path: "/api/delete_user_question/3"},
		{name: "save template", method: http.MethodPost, path: "/api/intake_templates", body: `{"name":"Base","questions":[]}`},
		{name: "export", method: http.MethodGet, path: "/api/export_intake_form/3"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := doJSON(t, handler, tc.method, tc.path, token, tc.body)
			if rr.Code != http.StatusForbidden {
				t.Fatalf("expected 403, got %d body=%s", rr.Code, rr.Body.String())
			}
			if decodeMap(t, rr)["code"] != "FORBIDDEN" {
				t.Fatalf("unexpected body %s", rr.Body.String())
			}
		})
	}
}

func TestAssistantCanFillForms(t *testing.T) {
	handler := NewHTTPServer(newTestService(&fakeStore{}, Deps{}), "*").Handler()
	token := issueTestToken(t, 1, "assistant")

	rr := doJSON(t, handler, http.MethodPost, "/api/add_intake_form", token, `{"client_id":4,"form_type":"intake"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestTrainerQuestionValidation(t *testing.T) {
	handler := NewHTTPServer(newTestService(&fakeStore{}, Deps{}), "*").Handler()
	token := issueTestToken(t, 1, "trainer")

	rr := doJSON(t, handler, http.MethodPost, "/api/add_user_question", token, `{"question_text":"Favourite sport?","question_type":"dropdown"}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("dropdown without options: expected 422, got %d", rr.Code)
	}

	rr = doJSON(t, handler, http.MethodPost, "/api/add_user_question", token, `{"question_text":"Favourite sport?","question_type":"dropdown","options":["Swim","Run"],"category":"Lifestyle"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	payload := decodeMap(t, rr)
	if payload["question_source"] != "trainer" || payload["category"] != "Lifestyle" {
		t.Fatalf("unexpected question %v", payload)
	}
}
