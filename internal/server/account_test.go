package server

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/teavision/internal/notify"
	"github.com/MeKo-Tech/teavision/internal/store"
	"github.com/MeKo-Tech/teavision/internal/testutil"
)

type recordingNotifier struct {
	sent chan notify.Message
}

func (n *recordingNotifier) Send(_ context.Context, msg notify.Message) error {
	n.sent <- msg
	return nil
}

func TestRegisterAndLogin(t *testing.T) {
	ts := newTestServer(t, Config{})
	rec := &recordingNotifier{sent: make(chan notify.Message, 1)}
	ts.notifier = rec

	w := ts.doJSON(t, http.MethodPost, "/register", Credentials{Email: " Leaf@Example.com ", Password: "green"}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	resp := decode[UserResponse](t, w)
	assert.Equal(t, "User registered successfully", resp.Message)
	assert.Equal(t, "leaf@example.com", resp.User.Email)
	assert.False(t, resp.User.IsAdmin)
	assert.Equal(t, "leaf@example.com", (<-rec.sent).To)

	tests := []struct {
		name    string
		path    string
		creds   Credentials
		status  int
		message string
	}{
		{name: "duplicate", path: "/register", creds: Credentials{"leaf@example.com", "green"}, status: http.StatusBadRequest, message: "Email already registered"},
		{name: "short password", path: "/register", creds: Credentials{"bud@example.com", "abc"}, status: http.StatusBadRequest, message: "Password must be at least 4 characters long"},
		{name: "missing", path: "/register", creds: Credentials{"", "green"}, status: http.StatusBadRequest, message: "Email and password are required"},
		{name: "wrong password", path: "/login", creds: Credentials{"leaf@example.com", "black"}, status: http.StatusUnauthorized, message: "Invalid credentials"},
		{name: "unknown user", path: "/login", creds: Credentials{"nobody@example.com", "green"}, status: http.StatusUnauthorized, message: "Invalid credentials"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.doJSON(t, http.MethodPost, tt.path, tt.creds, nil)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.message, errorMessage(t, w))
		})
	}

	w = ts.doJSON(t, http.MethodPost, "/login", Credentials{Email: "LEAF@example.com", Password: "green"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	login := decode[UserResponse](t, w)
	assert.Equal(t, "Login successful", login.Message)
	assert.Equal(t, resp.User.ID, login.User.ID)

	w = ts.do(t, http.MethodPost, "/login", strings.NewReader("{"), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHistoryRoutes(t *testing.T) {
	ts := newTestServer(t, Config{})
	ts.register(t, "leaf@example.com", false)
	user := map[string]string{HeaderUserEmail: "leaf@example.com"}

	entry := HistoryRequest{
		Prediction:    "DI",
		Confidence:    0.875,
		Probabilities: map[string]float64{"DI": 0.875, "UV": 0.125},
		ModelName:     "svm",
		ImageType:     "cropped",
		CroppedImage:  "data:image/png;base64,AAAA",
	}
	w := ts.doJSON(t, http.MethodPost, "/api/history", entry, user)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	saved := decode[EntryResponse](t, w)
	assert.Equal(t, "DI", saved.Entry.PredictionResult)

	w = ts.do(t, http.MethodGet, "/api/history", nil, user)
	require.Equal(t, http.StatusOK, w.Code)
	hist := decode[HistoryResponse](t, w)
	require.Len(t, hist.History, 1)
	assert.Equal(t, "data:image/png;base64,AAAA", hist.History[0].CroppedImage)
	assert.Equal(t, "leaf@example.com", hist.History[0].UserEmail)

	w = ts.do(t, http.MethodGet, "/api/history?user_email=leaf@example.com", nil, nil)
	assert.Len(t, decode[HistoryResponse](t, w).History, 1)

	w = ts.do(t, http.MethodGet, "/api/history/report", nil, user)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="prediction_history_20260314_092653.csv"`, w.Header().Get("Content-Disposition"))
	records, err := csv.NewReader(strings.NewReader(w.Body.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"Date", "Prediction", "Confidence", "Model", "Image Type", "Prob_DI", "Prob_UV"}, records[0])
	assert.Equal(t, "87.50%", records[1][2])

	tests := []struct {
		name    string
		method  string
		path    string
		header  map[string]string
		status  int
		message string
	}{
		{name: "list without email", method: http.MethodGet, path: "/api/history", status: http.StatusBadRequest, message: "User email required"},
		{name: "report without email", method: http.MethodGet, path: "/api/history/report", status: http.StatusBadRequest, message: "User email required"},
		{name: "unknown user", method: http.MethodGet, path: "/api/history", header: map[string]string{HeaderUserEmail: "x@example.com"}, status: http.StatusNotFound, message: "User not found"},
		{name: "wrong method", method: http.MethodDelete, path: "/api/history", header: user, status: http.StatusMethodNotAllowed, message: "Method not allowed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, tt.method, tt.path, nil, tt.header)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.message, errorMessage(t, w))
		})
	}

	w = ts.doJSON(t, http.MethodPost, "/api/history", HistoryRequest{}, user)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = ts.doJSON(t, http.MethodPost, "/api/history", entry, map[string]string{HeaderUserEmail: "x@example.com"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProfileRoutes(t *testing.T) {
	ts := newTestServer(t, Config{})
	u := ts.register(t, "leaf@example.com", false)
	ts.register(t, "bud@example.com", false)
	png := testutil.SolidPNG(t, 4, 4, testutil.TeaBrown)

	body, ctype := multipartBody(t, map[string]string{"user_email": "leaf@example.com"}, upload{"file", "me.PNG", png})
	w := ts.do(t, http.MethodPost, "/api/profile/upload-picture", body, map[string]string{"Content-Type": ctype})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[UserResponse](t, w)
	assert.Equal(t, "Profile picture uploaded successfully", resp.Message)
	wantURL := fmt.Sprintf("/api/profile/picture/profile_%d_%d.png", u.ID, ts.now().Unix())
	require.NotNil(t, resp.User.ProfilePictureURL)
	assert.Equal(t, wantURL, *resp.User.ProfilePictureURL)

	stored, err := os.ReadFile(filepath.Join(ts.uploadDir, filepath.Base(wantURL)))
	require.NoError(t, err)
	assert.Equal(t, png, stored)

	w = ts.do(t, http.MethodGet, wantURL, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, png, w.Body.Bytes())

	w = ts.do(t, http.MethodGet, "/api/profile/picture/missing.png", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Profile picture not found", errorMessage(t, w))

	uploads := []struct {
		name    string
		fields  map[string]string
		files   []upload
		status  int
		message string
	}{
		{name: "no email", files: []upload{{"file", "a.png", png}}, status: http.StatusBadRequest, message: "User email required"},
		{name: "unknown user", fields: map[string]string{"user_email": "x@example.com"}, status: http.StatusNotFound, message: "User not found"},
		{name: "no file", fields: map[string]string{"user_email": "leaf@example.com"}, status: http.StatusBadRequest, message: "No file uploaded"},
		{name: "bad type", fields: map[string]string{"user_email": "leaf@example.com"}, files: []upload{{"file", "a.bmp", png}}, status: http.StatusBadRequest, message: "Invalid file type. Allowed: jpg, jpeg, png, gif"},
	}
	for _, tt := range uploads {
		t.Run(tt.name, func(t *testing.T) {
			body, ctype := multipartBody(t, tt.fields, tt.files...)
			w := ts.do(t, http.MethodPost, "/api/profile/upload-picture", body, map[string]string{"Content-Type": ctype})
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.message, errorMessage(t, w))
		})
	}

	w = ts.doJSON(t, http.MethodPut, "/api/profile/update", map[string]string{"email": "bud@example.com"},
		map[string]string{HeaderUserEmail: "leaf@example.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Email already in use", errorMessage(t, w))

	w = ts.doJSON(t, http.MethodPost, "/api/profile/update",
		map[string]string{"email": "Tip@Example.com", "user_email": "leaf@example.com"}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[UserResponse](t, w)
	assert.Equal(t, "Profile updated successfully", updated.Message)
	assert.Equal(t, "tip@example.com", updated.User.Email)
	assert.Equal(t, wantURL, *updated.User.ProfilePictureURL)

	w = ts.doJSON(t, http.MethodPut, "/api/profile/update", map[string]string{"email": "a@b.c"}, nil)
	assert.Equal(t, "User email required", errorMessage(t, w))
}

func TestAdminRoutes(t *testing.T) {
	ts := newTestServer(t, Config{})
	admin := ts.register(t, "root@example.com", true)
	leaf := ts.register(t, "leaf@example.com", false)
	bud := ts.register(t, "bud@example.com", false)
	ctx := context.Background()
	_, err := ts.store.AddHistory(ctx, "leaf@example.com", store.HistoryEntry{Prediction: "DI", Confidence: 0.5})
	require.NoError(t, err)
	_, err = ts.store.AddHistory(ctx, "bud@example.com", store.HistoryEntry{Prediction: "UV", Confidence: 0.25})
	require.NoError(t, err)

	as := map[string]string{HeaderAdminEmail: "root@example.com"}

	for _, hdr := range []map[string]string{nil, {HeaderAdminEmail: "leaf@example.com"}, {HeaderAdminEmail: "ghost@example.com"}} {
		w := ts.do(t, http.MethodGet, "/api/admin/users", nil, hdr)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, "Admin access required", errorMessage(t, w))
	}

	w := ts.do(t, http.MethodGet, "/api/admin/users", nil, as)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[map[string][]store.User](t, w)["users"], 3)

	w = ts.do(t, http.MethodGet, "/api/admin/stats?admin_email=root@example.com", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode[store.Stats](t, w)
	assert.Equal(t, 3, stats.TotalUsers)
	assert.Equal(t, 1, stats.AdminUsers)

	w = ts.doJSON(t, http.MethodPut, fmt.Sprintf("/api/admin/users/%d", leaf.ID), Credentials{Email: "bud@example.com"}, as)
	assert.Equal(t, "Email already in use", errorMessage(t, w))
	w = ts.doJSON(t, http.MethodPut, fmt.Sprintf("/api/admin/users/%d", leaf.ID), Credentials{Password: "longer"}, as)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "User updated successfully", decode[MessageResponse](t, w).Message)
	_, err = ts.store.Authenticate(ctx, "leaf@example.com", "longer")
	assert.NoError(t, err)

	w = ts.do(t, http.MethodPost, fmt.Sprintf("/api/admin/users/%d/toggle-admin", leaf.ID), nil, as)
	require.Equal(t, http.StatusOK, w.Code)
	toggled := decode[map[string]any](t, w)
	assert.Equal(t, "User promoted to admin successfully", toggled["message"])
	assert.Equal(t, true, toggled["is_admin"])

	w = ts.do(t, http.MethodPost, fmt.Sprintf("/api/admin/users/%d/toggle-admin", admin.ID), nil, as)
	assert.Equal(t, "Cannot change your own admin status", errorMessage(t, w))
	w = ts.do(t, http.MethodDelete, fmt.Sprintf("/api/admin/users/%d", admin.ID), nil, as)
	assert.Equal(t, "Cannot delete your own account", errorMessage(t, w))
	w = ts.do(t, http.MethodDelete, "/api/admin/users/999", nil, as)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = ts.do(t, http.MethodDelete, "/api/admin/users/abc", nil, as)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodGet, "/api/admin/history?user_email=BUD@example.com", nil, as)
	require.Equal(t, http.StatusOK, w.Code)
	hist := decode[HistoryResponse](t, w).History
	require.Len(t, hist, 1)
	assert.Equal(t, "UV", hist[0].Prediction)

	w = ts.do(t, http.MethodGet, "/api/admin/history/report", nil, as)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="admin_prediction_history_20260314_092653.csv"`, w.Header().Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "User Email,Date,"))

	w = ts.do(t, http.MethodDelete, fmt.Sprintf("/api/admin/users/%d", bud.ID), nil, as)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "User deleted successfully", decode[MessageResponse](t, w).Message)

	w = ts.do(t, http.MethodDelete, "/api/admin/history", nil, as)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Deleted 1 prediction records", decode[MessageResponse](t, w).Message)

	assert.Equal(t, http.StatusMethodNotAllowed, ts.do(t, http.MethodPost, "/api/admin/stats", nil, as).Code)
}
