package main

import (
	"io"
	"net/http"
	"strings"
	"testing"
)

func TestRegisterValidationAndConflict(t *testing.T) {
	_, srv := newTestServer(t)

	resp := doJSON(t, http.DefaultClient, "POST", srv.URL+"/api/users", map[string]string{
		"username": "alice",
	})
	assertStatus(t, resp, http.StatusBadRequest)
	assertFailure(t, decodeBody(t, resp))

	registerUser(t, srv, "alice", "secret")

	resp = doJSON(t, http.DefaultClient, "POST", srv.URL+"/api/users", map[string]string{
		"username": "alice",
		"email":    "other@example.com",
		"password": "different",
	})
	assertStatus(t, resp, http.StatusConflict)
	body := decodeBody(t, resp)
	assertFailure(t, body)
	if body["message"] != "Username already exists" {
		t.Errorf("Unexpected conflict message: %v", body["message"])
	}
}

func TestLoginLogout(t *testing.T) {
	_, srv := newTestServer(t)
	registerUser(t, srv, "alice", "secret")

	client := loginAs(t, srv, "alice", "secret")

	resp, err := client.Get(srv.URL + "/api/login")
	if err != nil {
		t.Fatalf("Status request failed: %v", err)
	}
	body := decodeBody(t, resp)
	if body["loggedIn"] != true || body["username"] != "alice" {
		t.Errorf("Expected a live session for alice, got %v", body)
	}

	resp = doJSON(t, client, "DELETE", srv.URL+"/api/login", nil)
	decodeBody(t, resp)

	resp, err = client.Get(srv.URL + "/api/login")
	if err != nil {
		t.Fatalf("Status request failed: %v", err)
	}
	body = decodeBody(t, resp)
	if body["loggedIn"] != false {
		t.Errorf("Expected the session to be gone, got %v", body)
	}

	badClient := createSession(t)
	resp = doJSON(t, badClient, "POST", srv.URL+"/api/login", map[string]string{
		"username": "alice",
		"password": "wrong",
	})
	assertStatus(t, resp, http.StatusUnauthorized)
	assertFailure(t, decodeBody(t, resp))
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	_, srv := newTestServer(t)

	resp := doJSON(t, http.DefaultClient, "POST", srv.URL+"/api/contents", map[string]string{"title": "x"})
	assertStatus(t, resp, http.StatusUnauthorized)
	assertFailure(t, decodeBody(t, resp))
}

func TestFollowUnfollowRoundTrip(t *testing.T) {
	_, srv := newTestServer(t)
	registerUser(t, srv, "bob", "pw")
	alice := signUpAndLogin(t, srv, "alice", "pw")

	resp := doJSON(t, alice, "POST", srv.URL+"/api/follow", map[string]string{"targetUsername": "bob"})
	decodeBody(t, resp)

	// Following twice stays a set.
	resp = doJSON(t, alice, "POST", srv.URL+"/api/follow", map[string]string{"targetUsername": "bob"})
	decodeBody(t, resp)

	resp, _ = http.Get(srv.URL + "/api/profile/bob")
	body := decodeBody(t, resp)
	if body["followersCount"] != float64(1) {
		t.Errorf("Expected bob to have 1 follower, got %v", body["followersCount"])
	}

	resp, _ = http.Get(srv.URL + "/api/profile/alice")
	body = decodeBody(t, resp)
	if body["followingCount"] != float64(1) {
		t.Errorf("Expected alice to follow 1 user, got %v", body["followingCount"])
	}

	resp, _ = http.Get(srv.URL + "/api/profile/bob/followers")
	body = decodeBody(t, resp)
	users := results(t, body, "users")
	if len(users) != 1 || users[0].(map[string]any)["username"] != "alice" {
		t.Errorf("Expected followers [alice], got %v", users)
	}

	resp = doJSON(t, alice, "DELETE", srv.URL+"/api/follow", map[string]string{"targetUsername": "bob"})
	decodeBody(t, resp)

	resp, _ = http.Get(srv.URL + "/api/profile/bob")
	body = decodeBody(t, resp)
	if body["followersCount"] != float64(0) {
		t.Errorf("Expected the follow set to return to its prior state, got %v", body["followersCount"])
	}

	// Unfollowing someone you do not follow still succeeds.
	resp = doJSON(t, alice, "DELETE", srv.URL+"/api/follow", map[string]string{"targetUsername": "bob"})
	body = decodeBody(t, resp)
	if body["success"] != true {
		t.Errorf("Expected idempotent unfollow, got %v", body)
	}
}

func TestFollowRejectsSelfAndUnknown(t *testing.T) {
	_, srv := newTestServer(t)
	alice := signUpAndLogin(t, srv, "alice", "pw")

	resp := doJSON(t, alice, "POST", srv.URL+"/api/follow", map[string]string{"targetUsername": "alice"})
	assertStatus(t, resp, http.StatusBadRequest)
	assertFailure(t, decodeBody(t, resp))

	resp = doJSON(t, alice, "POST", srv.URL+"/api/follow", map[string]string{"targetUsername": "ghost"})
	assertStatus(t, resp, http.StatusNotFound)
	assertFailure(t, decodeBody(t, resp))

	resp = doJSON(t, alice, "POST", srv.URL+"/api/follow", map[string]string{})
	assertStatus(t, resp, http.StatusBadRequest)
	assertFailure(t, decodeBody(t, resp))
}

func TestSearchUsersNeverLeaksPasswords(t *testing.T) {
	_, srv := newTestServer(t)
	registerUser(t, srv, "alice", "super-secret-pw")
	registerUser(t, srv, "alfred", "pw2")
	registerUser(t, srv, "bob", "pw3")

	resp, err := http.Get(srv.URL + "/api/users?q=AL")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	raw, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if strings.Contains(string(raw), "super-secret-pw") {
		t.Fatal("Password leaked in search results")
	}
	if !strings.Contains(string(raw), "alice") || !strings.Contains(string(raw), "alfred") {
		t.Errorf("Expected alice and alfred in results, got %s", raw)
	}
	if strings.Contains(string(raw), "bob") {
		t.Errorf("Did not expect bob in results for q=AL, got %s", raw)
	}
}

func TestProfileUnknownUser(t *testing.T) {
	_, srv := newTestServer(t)

	resp, _ := http.Get(srv.URL + "/api/profile/ghost")
	assertStatus(t, resp, http.StatusNotFound)
	assertFailure(t, decodeBody(t, resp))
}
