package main

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func multipartBody(t *testing.T, field string, filenames ...string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for _, name := range filenames {
		part, err := writer.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = part.Write([]byte("fake image bytes"))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return &buf, writer.FormDataContentType()
}

func TestUploadProfilePicture(t *testing.T) {
	api, srv := newTestServer(t)
	alice := signUpAndLogin(t, srv, "alice", "pw")

	body, contentType := multipartBody(t, "image", "me.png")
	req, err := http.NewRequest("POST", srv.URL+"/api/upload/profile", body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", contentType)

	resp, err := alice.Do(req)
	require.NoError(t, err)
	envelope := decodeBody(t, resp)
	require.Equal(t, true, envelope["success"])

	url, ok := envelope["url"].(string)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(url, "/uploads/profile/"), "got %q", url)
	assert.True(t, strings.HasSuffix(url, ".png"))

	// The file landed on disk and the profile points at it.
	stored := filepath.Join(api.cfg.UploadDir, strings.TrimPrefix(url, "/uploads/"))
	_, err = os.Stat(stored)
	assert.NoError(t, err)

	var user User
	require.NoError(t, api.db.Where("username = ?", "alice").First(&user).Error)
	assert.Equal(t, url, user.ProfilePic)
}

func TestUploadCarImages(t *testing.T) {
	_, srv := newTestServer(t)
	alice := signUpAndLogin(t, srv, "alice", "pw")

	body, contentType := multipartBody(t, "images", "front.jpg", "back.jpg")
	req, err := http.NewRequest("POST", srv.URL+"/api/upload/car", body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", contentType)

	resp, err := alice.Do(req)
	require.NoError(t, err)
	envelope := decodeBody(t, resp)
	require.Equal(t, true, envelope["success"])
	urls := results(t, envelope, "urls")
	assert.Len(t, urls, 2)

	// More than three images is rejected.
	body, contentType = multipartBody(t, "images", "a.jpg", "b.jpg", "c.jpg", "d.jpg")
	req, err = http.NewRequest("POST", srv.URL+"/api/upload/car", body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", contentType)

	resp, err = alice.Do(req)
	require.NoError(t, err)
	assertStatus(t, resp, http.StatusBadRequest)
	assertFailure(t, decodeBody(t, resp))
}

func TestUploadRequiresFile(t *testing.T) {
	_, srv := newTestServer(t)
	alice := signUpAndLogin(t, srv, "alice", "pw")

	body, contentType := multipartBody(t, "unrelated", "x.png")
	req, err := http.NewRequest("POST", srv.URL+"/api/upload/profile", body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", contentType)

	resp, err := alice.Do(req)
	require.NoError(t, err)
	assertStatus(t, resp, http.StatusBadRequest)
	assertFailure(t, decodeBody(t, resp))
}
