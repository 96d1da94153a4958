package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func gateRequest(t *testing.T, path, token string) GateResponseDTO {
	t.Helper()
	handler := NewSessionHandler()

	request := httptest.NewRequest("GET", "/api/session/gate?path="+path, nil)
	if token != "" {
		request = withToken(request, token)
	}
	recorder := httptest.NewRecorder()
	handler.Gate(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, recorder.Code)
	}
	var resp GateResponseDTO
	if err := json.NewDecoder(recorder.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp
}

func TestGate_AnonymousOnRestrictedRoute(t *testing.T) {
	resp := gateRequest(t, "/checkout", "")
	if resp.Authenticated {
		t.Error("expected anonymous")
	}
	if resp.Redirect != "/login" {
		t.Errorf("expected redirect /login, got %q", resp.Redirect)
	}
}

func TestGate_LoggedInOnAuthRoute(t *testing.T) {
	resp := gateRequest(t, "/login", "opaque-token")
	if !resp.Authenticated {
		t.Error("expected authenticated")
	}
	if resp.Redirect != "/" {
		t.Errorf("expected redirect /, got %q", resp.Redirect)
	}
}

func TestGate_PublicRouteNoRedirect(t *testing.T) {
	resp := gateRequest(t, "/products", "")
	if resp.Redirect != "" {
		t.Errorf("expected no redirect, got %q", resp.Redirect)
	}
}
