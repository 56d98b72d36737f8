//go:build !integration

package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"virtual-tryon/internal/client"
	"virtual-tryon/internal/domain"
)

func TestClient(t *testing.T) {
	ctx := context.Background()

	t.Run("should send a multipart submission with the bearer token", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.URL.Path != "/v1/jobs" {
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}
			if r.Header.Get("Authorization") != "Bearer tok" {
				t.Errorf("missing bearer token")
			}
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				t.Fatalf("parse form: %v", err)
			}
			f, _, err := r.FormFile("person")
			if err != nil {
				t.Fatalf("person part: %v", err)
			}
			data, _ := io.ReadAll(f)
			if string(data) != "p" || r.FormValue("garment_ref") != "owners/a/g.png" || r.FormValue("style") != "upper" {
				t.Errorf("unexpected form: person=%q garment_ref=%q style=%q", data, r.FormValue("garment_ref"), r.FormValue("style"))
			}
			w.WriteHeader(http.StatusAccepted)
			_ = json.NewEncoder(w).Encode(map[string]string{"job_id": "job-1", "status": "pending"})
		}))
		defer ts.Close()

		id, err := client.New(ts.URL, "tok").Submit(ctx, client.SubmitRequest{
			Person:  client.Input{Data: []byte("p")},
			Garment: client.Input{Ref: "owners/a/g.png"},
			Style:   "upper",
		})
		if err != nil || id != "job-1" {
			t.Errorf("Submit: id=%q err=%v", id, err)
		}
	})

	t.Run("should map API error codes to domain errors", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusPaymentRequired)
			_, _ = w.Write([]byte(`{"error":"insufficient credits","code":"insufficient_credits"}`))
		}))
		defer ts.Close()

		_, err := client.New(ts.URL, "tok").Submit(ctx, client.SubmitRequest{Style: "upper"})
		var apiErr *client.APIError
		if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusPaymentRequired {
			t.Fatalf("unexpected error %v", err)
		}
		if !errors.Is(err, domain.ErrInsufficientCredits) {
			t.Errorf("expected ErrInsufficientCredits, got %v", err)
		}
	})

	t.Run("should read job status using the dev owner header", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("X-Owner-ID") != "alice" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"job_id": "job-1", "status": "completed", "result_ref": "owners/alice/r.png"})
		}))
		defer ts.Close()

		st, err := client.New(ts.URL, "", client.WithDevOwner("alice")).Status(ctx, "job-1")
		if err != nil || st.Status != "completed" || st.ResultRef != "owners/alice/r.png" {
			t.Errorf("Status: %+v err=%v", st, err)
		}
	})
}
