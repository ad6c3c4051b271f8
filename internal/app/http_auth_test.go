package app

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/authpw"
	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/store"
)

func doJSON(t *testing.T, handler http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func decodeMap(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v body=%s", err, rr.Body.String())
	}
	return payload
}

func TestSignInReturnsContract(t *testing.T) {
	trainer := store.Trainer{ID: 5, FirstName: "Sam", LastName: "Lee", Role: "trainer"}
	svc := newTestService(&fakeStore{}, Deps{Sessions: newFakeSessions(), Auth: &fakeAuth{trainer: trainer}})
	handler := NewHTTPServer(svc, "*").Handler()

	rr := doJSON(t, handler, http.MethodPost, "/api/auth/signin", "", `{"email":"sam@example.com","password":"password1"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	payload := decodeMap(t, rr)
	token, _ := payload["accessToken"].(string)
	if token == "" || payload["refreshToken"] == "" {
		t.Fatalf("expected tokens, got %v", payload)
	}
	if payload["userName"] != "Sam Lee" || payload["trainerId"] != float64(5) {
		t.Fatalf("unexpected payload: %v", payload)
	}

	var cookie *http.Cookie
	for _, candidate := range rr.Result().Cookies() {
		if candidate.Name == sessionCookie {
			cookie = candidate
		}
	}
	if cookie == nil || cookie.Value != token || !cookie.HttpOnly {
		t.Fatalf("expected session cookie, got %+v", cookie)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.AddCookie(cookie)
	sessionRR := httptest.NewRecorder()
	handler.ServeHTTP(sessionRR, req)
	if decodeMap(t, sessionRR)["authenticated"] != true {
		t.Fatalf("cookie session not recognised: %s", sessionRR.Body.String())
	}
}

func TestSignInRejectsBadCredentials(t *testing.T) {
	svc := newTestService(&fakeStore{}, Deps{Auth: &fakeAuth{err: authpw.ErrInvalidCredentials}})
	handler := NewHTTPServer(svc, "*").Handler()

	rr := doJSON(t, handler, http.MethodPost, "/api/auth/signin", "", `{"email":"sam@example.com","password":"nope"}`)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if decodeMap(t, rr)["code"] != "INVALID_CREDENTIALS" {
		t.Fatalf("unexpected body %s", rr.Body.String())
	}
}

func TestSignUpCreatesSession(t *testing.T) {
	svc := newTestService(&fakeStore{}, Deps{Sessions: newFakeSessions(), Auth: &fakeAuth{}})
	handler := NewHTTPServer(svc, "*").Handler()

	rr := doJSON(t, handler, http.MethodPost, "/api/auth/signup", "", `{"first_name":"Ana","last_name":"Ruiz","email":"ana@example.com","password":"password1"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	if decodeMap(t, rr)["userName"] != "Ana Ruiz" {
		t.Fatalf("unexpected body %s", rr.Body.String())
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	handler := NewHTTPServer(newTestService(&fakeStore{}, Deps{}), "*").Handler()

	rr := doJSON(t, handler, http.MethodGet, "/api/get_user_questions", "", "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}

	rr = doJSON(t, handler, http.MethodGet, "/api/get_user_questions", "not-a-jwt", "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", rr.Code)
	}
}

func TestLogoutRevokesTokenOverHTTP(t *testing.T) {
	svc := newTestService(&fakeStore{}, Deps{Sessions: newFakeSessions()})
	handler := NewHTTPServer(svc, "*").Handler()
	token := issueTestToken(t, 3, "trainer")

	if rr := doJSON(t, handler, http.MethodGet, "/api/existing_clients", token, ""); rr.Code != http.StatusOK {
		t.Fatalf("expected 200 before logout, got %d", rr.Code)
	}
	if rr := doJSON(t, handler, http.MethodPost, "/api/session/logout", token, `{}`); rr.Code != http.StatusOK {
		t.Fatalf("logout status %d", rr.Code)
	}
	if rr := doJSON(t, handler, http.MethodGet, "/api/existing_clients", token, ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", rr.Code)
	}
}
