package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newTestAPI spins up the full API against an in-memory database unique to
// the calling test.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	if err := migrate(db); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	cfg := Config{
		Prefix:     "/api",
		SessionKey: "test-session-key",
		UploadDir:  t.TempDir(),
	}
	return newAPI(db, cfg, InitMetrics(prometheus.NewRegistry()))
}

func newTestServer(t *testing.T) (*API, *httptest.Server) {
	t.Helper()
	api := newTestAPI(t)
	srv := httptest.NewServer(api.Router())
	t.Cleanup(srv.Close)
	return api, srv
}

// createSession mirrors a browser: a client with a cookie jar that keeps the
// session across requests.
func createSession(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("Failed to create cookie jar: %v", err)
	}
	return &http.Client{Jar: jar}
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode request body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Request %s %s failed: %v", method, url, err)
	}
	return resp
}

// decodeBody reads the whole JSON envelope into a generic map.
func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response body: %v", err)
	}
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("Failed to decode response %q: %v", raw, err)
	}
	return body
}

func registerUser(t *testing.T, srv *httptest.Server, username, password string) {
	t.Helper()
	resp := doJSON(t, http.DefaultClient, "POST", srv.URL+"/api/users", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": password,
	})
	body := decodeBody(t, resp)
	if body["success"] != true {
		t.Fatalf("Failed to register %s: %v", username, body)
	}
}

// loginAs registers nothing; the caller registers first.
func loginAs(t *testing.T, srv *httptest.Server, username, password string) *http.Client {
	t.Helper()
	client := createSession(t)
	resp := doJSON(t, client, "POST", srv.URL+"/api/login", map[string]string{
		"username": username,
		"password": password,
	})
	body := decodeBody(t, resp)
	if body["success"] != true {
		t.Fatalf("Failed to log in as %s: %v", username, body)
	}
	return client
}

func signUpAndLogin(t *testing.T, srv *httptest.Server, username, password string) *http.Client {
	t.Helper()
	registerUser(t, srv, username, password)
	return loginAs(t, srv, username, password)
}

func assertStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Errorf("Expected status %d but got %d", want, resp.StatusCode)
	}
}

func assertFailure(t *testing.T, body map[string]any) {
	t.Helper()
	if body["success"] != false {
		t.Errorf("Expected a failure envelope but got %v", body)
	}
	if msg, ok := body["message"].(string); !ok || msg == "" {
		t.Errorf("Expected a failure message but got %v", body["message"])
	}
}

// results pulls a named array out of an envelope.
func results(t *testing.T, body map[string]any, key string) []any {
	t.Helper()
	arr, ok := body[key].([]any)
	if !ok {
		t.Fatalf("Expected %q to be an array, got %v", key, body[key])
	}
	return arr
}
