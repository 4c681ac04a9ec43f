package server

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/MeKo-Tech/teavision/internal/report"
	"github.com/MeKo-Tech/teavision/internal/store"
)

// HistoryResponse lists prediction history entries.
type HistoryResponse struct {
	History []store.HistoryEntry `json:"history"`
}

// HistoryRequest is the body of POST /api/history.
type HistoryRequest struct {
	Prediction    string             `json:"prediction"`
	Confidence    float64            `json:"confidence"`
	Probabilities map[string]float64 `json:"probabilities"`
	ModelName     string             `json:"model_name"`
	ImageType     string             `json:"image_type"`
	CroppedImage  string             `json:"cropped_image"`
}

// EntryResponse wraps a recorded entry.
type EntryResponse struct {
	Message string              `json:"message"`
	Entry   *store.HistoryEntry `json:"entry"`
}

// historyHandler lists (GET) or records (POST) the caller's predictions.
func (s *Server) historyHandler(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet, http.MethodPost) {
		return
	}
	email := userEmail(r)
	if email == "" {
		writeErrorResponse(w, "User email required", http.StatusBadRequest)
		return
	}

	if r.Method == http.MethodPost {
		var req HistoryRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Prediction == "" {
			writeErrorResponse(w, "Prediction is required", http.StatusBadRequest)
			return
		}
		e, err := s.store.AddHistory(r.Context(), email, store.HistoryEntry{
			Prediction:    req.Prediction,
			Confidence:    req.Confidence,
			Probabilities: req.Probabilities,
			ModelName:     req.ModelName,
			ImageType:     req.ImageType,
			CroppedImage:  req.CroppedImage,
		})
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, EntryResponse{Message: "Prediction saved successfully", Entry: e})
		return
	}

	entries, ok := s.userHistory(w, r, email)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, HistoryResponse{History: entries})
}

// userHistory loads the history of an existing account.
func (s *Server) userHistory(w http.ResponseWriter, r *http.Request, email string) ([]store.HistoryEntry, bool) {
	if _, err := s.store.GetUserByEmail(r.Context(), email); err != nil {
		s.writeStoreError(w, err)
		return nil, false
	}
	entries, err := s.store.ListHistory(r.Context(), store.HistoryFilter{UserEmail: email})
	if err != nil {
		s.writeStoreError(w, err)
		return nil, false
	}
	return entries, true
}

// historyReportHandler downloads the caller's history as CSV.
func (s *Server) historyReportHandler(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	email := userEmail(r)
	if email == "" {
		writeErrorResponse(w, "User email required", http.StatusBadRequest)
		return
	}
	entries, ok := s.userHistory(w, r, email)
	if !ok {
		return
	}
	s.writeReport(w, entries, false)
}

func (s *Server) writeReport(w http.ResponseWriter, entries []store.HistoryEntry, admin bool) {
	var buf bytes.Buffer
	if err := report.WriteHistory(&buf, entries, admin); err != nil {
		writeErrorResponse(w, "Failed to build report: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeAttachment(w, report.Filename(admin, s.now()), buf.Bytes())
}

// listUsersHandler lists every account.
func (s *Server) listUsersHandler(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]store.User{"users": users})
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeErrorResponse(w, "Invalid user id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// userHandler updates (PUT) or deletes (DELETE) an account.
func (s *Server) userHandler(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPut, http.MethodDelete) {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if r.Method == http.MethodDelete {
		if err := s.store.DeleteUser(r.Context(), adminEmail(r), id); err != nil {
			s.writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, MessageResponse{Message: "User deleted successfully"})
		return
	}

	var body Credentials
	if !decodeJSON(w, r, &body) {
		return
	}
	if _, err := s.store.UpdateUser(r.Context(), id, store.UserUpdate{Email: body.Email, Password: body.Password}); err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "User updated successfully"})
}

// toggleAdminHandler flips an account's admin flag.
func (s *Server) toggleAdminHandler(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	admin, err := s.store.ToggleAdmin(r.Context(), adminEmail(r), id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	verb := "demoted from"
	if admin {
		verb = "promoted to"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":  fmt.Sprintf("User %s admin successfully", verb),
		"is_admin": admin,
	})
}

// statsHandler reports account statistics.
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	st, err := s.store.Stats(r.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// adminHistoryHandler lists (GET) or clears (DELETE) history, optionally
// restricted by the user_email query parameter.
func (s *Server) adminHistoryHandler(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet, http.MethodDelete) {
		return
	}
	f := store.HistoryFilter{UserEmail: store.NormalizeEmail(r.URL.Query().Get("user_email"))}

	if r.Method == http.MethodDelete {
		n, err := s.store.ClearHistory(r.Context(), f)
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, MessageResponse{Message: fmt.Sprintf("Deleted %d prediction records", n)})
		return
	}

	entries, err := s.store.ListHistory(r.Context(), f)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, HistoryResponse{History: entries})
}

// adminReportHandler downloads every user's history as CSV.
func (s *Server) adminReportHandler(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	entries, err := s.store.ListHistory(r.Context(), store.HistoryFilter{})
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeReport(w, entries, true)
}
