package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/MeKo-Tech/teavision/internal/notify"
	"github.com/MeKo-Tech/teavision/internal/store"
)

// pictureExtensions are the accepted profile picture types.
var pictureExtensions = []string{".jpg", ".jpeg", ".png", ".gif"}

const notifyTimeout = 30 * time.Second

// Credentials is the body of /register and /login.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserResponse wraps a user with a status message.
type UserResponse struct {
	Message string      `json:"message"`
	User    *store.User `json:"user"`
}

// MessageResponse carries a status message.
type MessageResponse struct {
	Message string `json:"message"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeErrorResponse(w, "Invalid JSON body", http.StatusBadRequest)
		return false
	}
	return true
}

// registerHandler creates a regular account and sends a welcome message.
func (s *Server) registerHandler(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) {
		return
	}
	var creds Credentials
	if !decodeJSON(w, r, &creds) {
		return
	}
	u, err := s.store.Register(r.Context(), creds.Email, creds.Password, false)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	slog.Info("user registered", "user_id", u.ID, "email", u.Email)
	notify.Async(s.notifier, notify.WelcomeMessage(u.Email), notifyTimeout)
	writeJSON(w, http.StatusCreated, UserResponse{Message: "User registered successfully", User: u})
}

// loginHandler verifies credentials.
func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) {
		return
	}
	var creds Credentials
	if !decodeJSON(w, r, &creds) {
		return
	}
	u, err := s.store.Authenticate(r.Context(), creds.Email, creds.Password)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, UserResponse{Message: "Login successful", User: u})
}

// uploadPictureHandler stores a profile picture for the calling user.
func (s *Server) uploadPictureHandler(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) {
		return
	}
	if !s.parseMultipart(w, r) {
		return
	}
	email := userEmail(r)
	if email == "" {
		writeErrorResponse(w, "User email required", http.StatusBadRequest)
		return
	}
	u, err := s.store.GetUserByEmail(r.Context(), email)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	_, fh, err := r.FormFile("file")
	if err != nil {
		writeErrorResponse(w, "No file uploaded", http.StatusBadRequest)
		return
	}
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !slices.Contains(pictureExtensions, ext) {
		writeErrorResponse(w, "Invalid file type. Allowed: jpg, jpeg, png, gif", http.StatusBadRequest)
		return
	}
	data, err := readPart(fh)
	if err != nil {
		writeErrorResponse(w, "Failed to read upload", http.StatusBadRequest)
		return
	}

	if err := os.MkdirAll(s.uploadDir, 0o750); err != nil {
		writeErrorResponse(w, "Failed to store picture", http.StatusInternalServerError)
		return
	}
	name := fmt.Sprintf("profile_%d_%d%s", u.ID, s.now().Unix(), ext)
	if err := os.WriteFile(filepath.Join(s.uploadDir, name), data, 0o600); err != nil {
		slog.Error("Failed to write profile picture", "file", name, "error", err)
		writeErrorResponse(w, "Failed to store picture", http.StatusInternalServerError)
		return
	}

	u, err = s.store.SetProfilePicture(r.Context(), u.ID, "/api/profile/picture/"+name)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, UserResponse{Message: "Profile picture uploaded successfully", User: u})
}

// pictureHandler serves a stored profile picture.
func (s *Server) pictureHandler(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	name := r.PathValue("filename")
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		writeErrorResponse(w, "Profile picture not found", http.StatusNotFound)
		return
	}
	path := filepath.Join(s.uploadDir, name)
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		writeErrorResponse(w, "Profile picture not found", http.StatusNotFound)
		return
	}
	http.ServeFile(w, r, path)
}

// updateProfileHandler changes the calling user's email.
func (s *Server) updateProfileHandler(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPut, http.MethodPost) {
		return
	}
	var body struct {
		Email     string `json:"email"`
		UserEmail string `json:"user_email"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	email := store.NormalizeEmail(r.Header.Get(HeaderUserEmail))
	if email == "" {
		email = store.NormalizeEmail(body.UserEmail)
	}
	if email == "" {
		writeErrorResponse(w, "User email required", http.StatusBadRequest)
		return
	}
	u, err := s.store.GetUserByEmail(r.Context(), email)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	if next := store.NormalizeEmail(body.Email); next != "" && next != u.Email {
		if u, err = s.store.UpdateUser(r.Context(), u.ID, store.UserUpdate{Email: next}); err != nil {
			s.writeStoreError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, UserResponse{Message: "Profile updated successfully", User: u})
}
