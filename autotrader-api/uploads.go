package main

import (
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

const maxUploadBytes = 10 << 20 // per request

const maxCarImages = 3

// saveUpload writes one uploaded file under dir with a fresh random name and
// returns the stored reference path.
func (api *API) saveUpload(file multipart.File, header *multipart.FileHeader, dir string) (string, error) {
	defer file.Close()

	target := filepath.Join(api.cfg.UploadDir, dir)
	if err := os.MkdirAll(target, 0o755); err != nil {
		return "", err
	}

	name := uuid.NewString() + filepath.Ext(header.Filename)
	dst, err := os.Create(filepath.Join(target, name))
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		return "", err
	}
	return "/uploads/" + dir + "/" + name, nil
}

// UploadProfileHandler stores a profile picture and points the caller's
// profile at it.
func (api *API) UploadProfileHandler(w http.ResponseWriter, r *http.Request, username string) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		api.writeError(w, r, errValidation("Invalid upload"))
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		api.writeError(w, r, errValidation("No file uploaded"))
		return
	}

	url, err := api.saveUpload(file, header, "profile")
	if err != nil {
		api.writeError(w, r, errInternal("Failed to store file", err))
		return
	}

	err = api.db.Model(&User{}).Where("username = ?", username).
		Update("profile_pic", url).Error
	if err != nil {
		api.writeError(w, r, errInternal("Failed to update profile", err))
		return
	}

	api.writeSuccess(w, r, map[string]any{"url": url})
}

// UploadCarHandler stores up to three listing images and returns their
// reference paths; the client attaches them to a listing on creation.
func (api *API) UploadCarHandler(w http.ResponseWriter, r *http.Request, username string) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		api.writeError(w, r, errValidation("Invalid upload"))
		return
	}

	files := r.MultipartForm.File["images"]
	if len(files) == 0 {
		api.writeError(w, r, errValidation("No files uploaded"))
		return
	}
	if len(files) > maxCarImages {
		api.writeError(w, r, errValidation("At most 3 images per upload"))
		return
	}

	urls := make([]string, 0, len(files))
	for _, header := range files {
		file, err := header.Open()
		if err != nil {
			api.writeError(w, r, errInternal("Failed to read upload", err))
			return
		}
		url, err := api.saveUpload(file, header, "cars")
		if err != nil {
			api.writeError(w, r, errInternal("Failed to store file", err))
			return
		}
		urls = append(urls, url)
	}

	api.writeSuccess(w, r, map[string]any{"urls": urls})
}
