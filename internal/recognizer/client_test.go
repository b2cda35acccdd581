package recognizer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func verdictServer(t *testing.T, status int, inner string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.Contains(r.URL.Path, ":generateContent") {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(status)
		resp := map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{
					"parts": []map[string]any{{"text": inner}},
				},
			}},
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func testClient(url string, minConfidence float64) *Client {
	return New(url, "test-key", "test-model", "Vel Tech University", minConfidence, 5*time.Second, false)
}

func TestVerifyAccepted(t *testing.T) {
	srv := verdictServer(t, http.StatusOK,
		`{"is_valid": true, "is_institution_card": true, "student_name": "A. Kumar", "identifier": "vtu 1023", "confidence": 0.93}`)
	defer srv.Close()

	v, err := testClient(srv.URL, 0).Verify(context.Background(), []byte("jpeg"))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !v.Valid {
		t.Fatal("expected valid verdict")
	}
	if v.StudentName != "A. Kumar" || v.Identifier != "vtu 1023" {
		t.Fatalf("unexpected verdict: %+v", v)
	}
}

func TestVerifyRejected(t *testing.T) {
	srv := verdictServer(t, http.StatusOK,
		`{"is_valid": false, "is_institution_card": false, "student_name": "", "identifier": "", "rejection_reason": "Not a recognized card"}`)
	defer srv.Close()

	v, err := testClient(srv.URL, 0).Verify(context.Background(), []byte("jpeg"))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if v.Valid {
		t.Fatal("expected invalid verdict")
	}
	if v.RejectionReason != "Not a recognized card" {
		t.Fatalf("reason = %q", v.RejectionReason)
	}
}

func TestVerifyBelowConfidenceThreshold(t *testing.T) {
	srv := verdictServer(t, http.StatusOK,
		`{"is_valid": true, "is_institution_card": true, "student_name": "A. Kumar", "identifier": "VTU1023", "confidence": 0.30}`)
	defer srv.Close()

	v, err := testClient(srv.URL, 0.6).Verify(context.Background(), []byte("jpeg"))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if v.Valid {
		t.Fatal("low-confidence verdict should be rejected")
	}
	if !strings.Contains(v.RejectionReason, "confidence") {
		t.Fatalf("reason = %q", v.RejectionReason)
	}
}

func TestVerifyMissingRequiredFields(t *testing.T) {
	srv := verdictServer(t, http.StatusOK, `{"student_name": "A. Kumar"}`)
	defer srv.Close()

	if _, err := testClient(srv.URL, 0).Verify(context.Background(), []byte("jpeg")); err == nil {
		t.Fatal("expected error for verdict missing required fields")
	}
}

func TestVerifyMalformedVerdict(t *testing.T) {
	srv := verdictServer(t, http.StatusOK, `not json at all`)
	defer srv.Close()

	if _, err := testClient(srv.URL, 0).Verify(context.Background(), []byte("jpeg")); err == nil {
		t.Fatal("expected error for unparseable verdict")
	}
}

func TestVerifyNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	if _, err := testClient(srv.URL, 0).Verify(context.Background(), []byte("jpeg")); err == nil {
		t.Fatal("expected error for non-success status")
	}
}

func TestVerifyEmptyCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates": []}`))
	}))
	defer srv.Close()

	if _, err := testClient(srv.URL, 0).Verify(context.Background(), []byte("jpeg")); err == nil {
		t.Fatal("expected error for empty candidates")
	}
}

func TestVerifyTransportFailure(t *testing.T) {
	c := testClient("http://127.0.0.1:1", 0)
	if _, err := c.Verify(context.Background(), []byte("jpeg")); err == nil {
		t.Fatal("expected error when service is unreachable")
	}
}

func TestVerifySkipMode(t *testing.T) {
	c := New("", "", "", "Vel Tech University", 0, time.Second, true)
	v, err := c.Verify(context.Background(), nil)
	if err != nil {
		t.Fatalf("skip verify: %v", err)
	}
	if !v.Valid || v.Identifier == "" {
		t.Fatalf("skip mode should return a canned accepted verdict, got %+v", v)
	}
}
