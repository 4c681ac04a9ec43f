package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// HistoryEntry is one recorded prediction.
type HistoryEntry struct {
	ID               int64              `json:"id"`
	UserID           int64              `json:"user_id"`
	UserEmail        string             `json:"user_email"`
	Prediction       string             `json:"prediction"`
	PredictionResult string             `json:"prediction_result"`
	Confidence       float64            `json:"confidence"`
	Probabilities    map[string]float64 `json:"probabilities"`
	ModelName        string             `json:"model_name"`
	ImageType        string             `json:"image_type"`
	CroppedImage     string             `json:"cropped_image,omitempty"`
	CreatedAt        string             `json:"created_at"`
}

// HistoryFilter restricts ListHistory and ClearHistory. The zero value
// matches every entry.
type HistoryFilter struct {
	UserEmail string
}

// AddHistory records a prediction for the account owning email.
func (s *SQLiteStore) AddHistory(ctx context.Context, email string, e HistoryEntry) (*HistoryEntry, error) {
	u, err := s.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	probs := e.Probabilities
	if probs == nil {
		probs = map[string]float64{}
	}
	raw, err := json.Marshal(probs)
	if err != nil {
		return nil, fmt.Errorf("encode probabilities: %w", err)
	}

	e.UserID = u.ID
	e.UserEmail = u.Email
	e.Probabilities = probs
	e.CreatedAt = s.timestamp()
	res, err := s.db.ExecContext(ctx, `INSERT INTO prediction_history
		(user_id, user_email, prediction, confidence, probabilities, model_name, image_type, cropped_image, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.UserID, e.UserEmail, e.Prediction, e.Confidence, string(raw), e.ModelName, e.ImageType,
		stripDataURI(e.CroppedImage), e.CreatedAt)
	if err != nil {
		logQueryError("add history", err)
		return nil, err
	}
	if e.ID, err = res.LastInsertId(); err != nil {
		return nil, err
	}
	e.PredictionResult = e.Prediction
	e.CroppedImage = withDataURI(stripDataURI(e.CroppedImage))
	return &e, nil
}

// ListHistory returns matching entries, newest first.
func (s *SQLiteStore) ListHistory(ctx context.Context, f HistoryFilter) ([]HistoryEntry, error) {
	query := `SELECT id, user_id, user_email, prediction, confidence, probabilities,
		model_name, image_type, cropped_image, created_at FROM prediction_history`
	where, args := f.clause()
	rows, err := s.db.QueryContext(ctx, query+where+` ORDER BY created_at DESC, id DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []HistoryEntry{}
	for rows.Next() {
		var (
			e       HistoryEntry
			raw     string
			cropped *string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.UserEmail, &e.Prediction, &e.Confidence, &raw,
			&e.ModelName, &e.ImageType, &cropped, &e.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(raw), &e.Probabilities); err != nil {
			return nil, fmt.Errorf("decode probabilities of entry %d: %w", e.ID, err)
		}
		if cropped != nil {
			e.CroppedImage = withDataURI(*cropped)
		}
		e.PredictionResult = e.Prediction
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ClearHistory deletes matching entries and returns how many went.
func (s *SQLiteStore) ClearHistory(ctx context.Context, f HistoryFilter) (int64, error) {
	where, args := f.clause()
	res, err := s.db.ExecContext(ctx, `DELETE FROM prediction_history`+where, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (f HistoryFilter) clause() (string, []any) {
	if f.UserEmail == "" {
		return "", nil
	}
	return ` WHERE user_email = ?`, []any{NormalizeEmail(f.UserEmail)}
}

const dataURIPrefix = "data:image/png;base64,"

func stripDataURI(s string) string {
	if i := strings.Index(s, ";base64,"); strings.HasPrefix(s, "data:") && i >= 0 {
		return s[i+len(";base64,"):]
	}
	return s
}

func withDataURI(s string) string {
	if s == "" || strings.HasPrefix(s, "data:") {
		return s
	}
	return dataURIPrefix + s
}
