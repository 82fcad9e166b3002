package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// newAdminServer serves a fixed user list and records deletions.
func newAdminServer(t *testing.T, listStatus int, deleted *[]string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /auth/v1/admin/users", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer service" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		if listStatus != http.StatusOK {
			w.WriteHeader(listStatus)
			return
		}
		_ = json.NewEncoder(w).Encode(ListUsersResponse{Users: []CreateUserResponse{
			{ID: "user-1", Email: "demo@fiszki.local"},
			{ID: "user-2", Email: "ala@example.com"},
		}})
	})
	mux.HandleFunc("DELETE /auth/v1/admin/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		*deleted = append(*deleted, r.PathValue("id"))
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestAdminClient_FindUserIDByEmail(t *testing.T) {
	var deleted []string
	srv := newAdminServer(t, http.StatusOK, &deleted)
	c := NewAdminClient(srv.URL, "service")

	id, err := c.FindUserIDByEmail(context.Background(), "DEMO@fiszki.local")
	if err != nil || id != "user-1" {
		t.Errorf("FindUserIDByEmail() = %q, %v", id, err)
	}

	_, err = c.FindUserIDByEmail(context.Background(), "nobody@example.com")
	if !errors.Is(err, ErrUserNotFound) {
		t.Errorf("missing user error = %v, want ErrUserNotFound", err)
	}
}

func TestAdminClient_DeleteUserByEmail(t *testing.T) {
	tests := []struct {
		name        string
		listStatus  int
		email       string
		wantErr     bool
		wantDeleted []string
	}{
		{name: "existing user", listStatus: http.StatusOK, email: "ala@example.com", wantDeleted: []string{"user-2"}},
		{name: "missing user is a no-op", listStatus: http.StatusOK, email: "nobody@example.com"},
		{name: "list failure surfaces", listStatus: http.StatusInternalServerError, email: "ala@example.com", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var deleted []string
			srv := newAdminServer(t, tt.listStatus, &deleted)
			c := NewAdminClient(srv.URL, "service")

			err := c.DeleteUserByEmail(context.Background(), tt.email)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DeleteUserByEmail() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(deleted) != len(tt.wantDeleted) || (len(deleted) > 0 && deleted[0] != tt.wantDeleted[0]) {
				t.Errorf("deleted = %v, want %v", deleted, tt.wantDeleted)
			}
		})
	}
}
