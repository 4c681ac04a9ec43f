package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// User is an account as exposed over the API.
type User struct {
	ID                int64   `json:"id"`
	Email             string  `json:"email"`
	IsAdmin           bool    `json:"is_admin"`
	ProfilePictureURL *string `json:"profile_picture_url"`
	CreatedAt         string  `json:"created_at,omitempty"`
}

// UserUpdate holds optional account changes. Empty fields are left as is.
type UserUpdate struct {
	Email    string
	Password string
}

// Stats summarises account activity.
type Stats struct {
	TotalUsers   int          `json:"total_users"`
	AdminUsers   int          `json:"admin_users"`
	RegularUsers int          `json:"regular_users"`
	UsersToday   int          `json:"users_today"`
	UsersWeek    int          `json:"users_week"`
	UsersMonth   int          `json:"users_month"`
	RecentUsers  []RecentUser `json:"recent_users"`
}

// RecentUser is a row of Stats.RecentUsers.
type RecentUser struct {
	Email     string `json:"email"`
	CreatedAt string `json:"created_at"`
}

const userColumns = `id, email, is_admin, profile_picture_url, created_at`

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	var (
		u       User
		picture sql.NullString
	)
	if err := row.Scan(&u.ID, &u.Email, &u.IsAdmin, &picture, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if picture.Valid {
		u.ProfilePictureURL = &picture.String
	}
	return &u, nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func checkCredentials(email, password string) error {
	if email == "" || password == "" {
		return ErrMissingCredentials
	}
	if len(password) < MinPasswordLength {
		return ErrWeakPassword
	}
	return nil
}

// Register creates an account. The email is normalized and the password
// trimmed before validation.
func (s *SQLiteStore) Register(ctx context.Context, email, password string, admin bool) (*User, error) {
	email = NormalizeEmail(email)
	password = strings.TrimSpace(password)
	if err := checkCredentials(email, password); err != nil {
		return nil, err
	}
	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (email, password_hash, is_admin, created_at) VALUES (?, ?, ?, ?)`,
		email, hash, admin, s.timestamp())
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		logQueryError("register", err)
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return s.GetUser(ctx, id)
}

// Authenticate returns the account matching email and password.
func (s *SQLiteStore) Authenticate(ctx context.Context, email, password string) (*User, error) {
	email = NormalizeEmail(email)
	password = strings.TrimSpace(password)
	if email == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	var (
		id   int64
		hash string
	)
	err := s.db.QueryRowContext(ctx, `SELECT id, password_hash FROM users WHERE email = ?`, email).Scan(&id, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		logQueryError("authenticate", err)
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return s.GetUser(ctx, id)
}

// GetUser looks an account up by id.
func (s *SQLiteStore) GetUser(ctx context.Context, id int64) (*User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

// GetUserByEmail looks an account up by (normalized) email.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, NormalizeEmail(email)))
}

// IsAdmin reports whether email belongs to an administrator. Unknown
// addresses are not admins.
func (s *SQLiteStore) IsAdmin(ctx context.Context, email string) (bool, error) {
	u, err := s.GetUserByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return u.IsAdmin, nil
}

// RequireAdmin returns ErrForbidden unless email is an administrator.
func (s *SQLiteStore) RequireAdmin(ctx context.Context, email string) error {
	ok, err := s.IsAdmin(ctx, email)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

// ListUsers returns all accounts, newest first.
func (s *SQLiteStore) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// UpdateUser changes the email and/or password of an account.
func (s *SQLiteStore) UpdateUser(ctx context.Context, id int64, upd UserUpdate) (*User, error) {
	if _, err := s.GetUser(ctx, id); err != nil {
		return nil, err
	}

	email := NormalizeEmail(upd.Email)
	password := strings.TrimSpace(upd.Password)
	if password != "" && len(password) < MinPasswordLength {
		return nil, ErrWeakPassword
	}

	if email != "" {
		var other int64
		err := s.db.QueryRowContext(ctx, `SELECT id FROM users WHERE email = ? AND id != ?`, email, id).Scan(&other)
		if err == nil {
			return nil, ErrEmailInUse
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		if _, err := s.db.ExecContext(ctx, `UPDATE users SET email = ? WHERE id = ?`, email, id); err != nil {
			if isUniqueViolation(err) {
				return nil, ErrEmailInUse
			}
			return nil, err
		}
		// keep denormalized history rows in step
		if _, err := s.db.ExecContext(ctx, `UPDATE prediction_history SET user_email = ? WHERE user_id = ?`, email, id); err != nil {
			return nil, err
		}
	}
	if password != "" {
		hash, err := hashPassword(password)
		if err != nil {
			return nil, err
		}
		if _, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash = ? WHERE id = ?`, hash, id); err != nil {
			return nil, err
		}
	}
	return s.GetUser(ctx, id)
}

// DeleteUser removes an account and its history. actor is the email of the
// administrator performing the deletion.
func (s *SQLiteStore) DeleteUser(ctx context.Context, actor string, id int64) error {
	u, err := s.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if u.Email == NormalizeEmail(actor) {
		return ErrSelfDelete
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	return err
}

// ToggleAdmin flips the admin flag of an account and returns the new value.
func (s *SQLiteStore) ToggleAdmin(ctx context.Context, actor string, id int64) (bool, error) {
	u, err := s.GetUser(ctx, id)
	if err != nil {
		return false, err
	}
	if u.Email == NormalizeEmail(actor) {
		return false, ErrSelfToggle
	}
	next := !u.IsAdmin
	if _, err := s.db.ExecContext(ctx, `UPDATE users SET is_admin = ? WHERE id = ?`, next, id); err != nil {
		return false, err
	}
	return next, nil
}

// SetProfilePicture stores the public URL of an account's picture.
func (s *SQLiteStore) SetProfilePicture(ctx context.Context, id int64, url string) (*User, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET profile_picture_url = ? WHERE id = ?`, url, id)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return s.GetUser(ctx, id)
}

// Stats counts accounts overall and by registration window.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	week := today.AddDate(0, 0, -7)
	month := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	var st Stats
	err := s.db.QueryRowContext(ctx, `SELECT
			COUNT(*),
			COALESCE(SUM(is_admin), 0),
			COALESCE(SUM(created_at >= ?), 0),
			COALESCE(SUM(created_at >= ?), 0),
			COALESCE(SUM(created_at >= ?), 0)
		FROM users`,
		today.Format(timeLayout), week.Format(timeLayout), month.Format(timeLayout),
	).Scan(&st.TotalUsers, &st.AdminUsers, &st.UsersToday, &st.UsersWeek, &st.UsersMonth)
	if err != nil {
		return nil, err
	}
	st.RegularUsers = st.TotalUsers - st.AdminUsers

	rows, err := s.db.QueryContext(ctx, `SELECT email, created_at FROM users ORDER BY created_at DESC, id DESC LIMIT 10`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	st.RecentUsers = []RecentUser{}
	for rows.Next() {
		var r RecentUser
		if err := rows.Scan(&r.Email, &r.CreatedAt); err != nil {
			return nil, err
		}
		st.RecentUsers = append(st.RecentUsers, r)
	}
	return &st, rows.Err()
}
