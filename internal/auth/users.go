// Package auth holds player accounts and the tokens that identify them.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUsernameTaken      = errors.New("username taken")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrNoUser             = errors.New("no such user")
)

// ValidationError describes a rejected signup.
type ValidationError struct{ Reason string }

func (e *ValidationError) Error() string { return e.Reason }

var usernameRE = regexp.MustCompile(`^[A-Za-z0-9_]{3,24}$`)

// Validate checks signup input: usernames are 3 to 24 letters, digits or
// underscores; passwords 8 to 100 bytes.
func Validate(username, password string) error {
	if !usernameRE.MatchString(username) {
		return &ValidationError{Reason: "username must be 3-24 letters, numbers or underscores"}
	}
	if n := len(password); n < 8 || n > 100 {
		return &ValidationError{Reason: "password must be 8-100 characters"}
	}
	return nil
}

// User is one account with its running totals.
type User struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	CreatedAt   time.Time `json:"createdAt"`
	GamesPlayed int       `json:"gamesPlayed"`
	BestScore   int       `json:"bestScore"`
	TotalScore  int       `json:"totalScore"`

	hash []byte
}

// Users is the account table.
type Users struct {
	db   *sql.DB
	cost int
}

// NewUsers returns a repository over db. cost is the bcrypt cost; 0 means bcrypt.DefaultCost.
func NewUsers(db *sql.DB, cost int) *Users {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Users{db: db, cost: cost}
}

// Create registers a new account. Usernames are unique regardless of case.
func (u *Users) Create(ctx context.Context, username, password string) (User, error) {
	username = strings.TrimSpace(username)
	if err := Validate(username, password); err != nil {
		return User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), u.cost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	user := User{
		ID:        uuid.NewString(),
		Username:  username,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		hash:      hash,
	}
	_, err = u.db.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		user.ID, user.Username, string(hash), user.CreatedAt.Format(time.RFC3339))
	var sqlErr sqlite3.Error
	if errors.As(err, &sqlErr) && sqlErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return User{}, ErrUsernameTaken
	}
	if err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

// Authenticate returns the account when password matches.
func (u *Users) Authenticate(ctx context.Context, username, password string) (User, error) {
	user, err := u.get(ctx, `lower(username) = lower(?)`, strings.TrimSpace(username))
	if errors.Is(err, ErrNoUser) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}
	if bcrypt.CompareHashAndPassword(user.hash, []byte(password)) != nil {
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}

// ByID loads an account.
func (u *Users) ByID(ctx context.Context, id string) (User, error) {
	return u.get(ctx, `id = ?`, id)
}

func (u *Users) get(ctx context.Context, where string, arg any) (User, error) {
	var (
		user    User
		hash    string
		created string
	)
	err := u.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at, games_played, best_score, total_score
		 FROM users WHERE `+where, arg).
		Scan(&user.ID, &user.Username, &hash, &created, &user.GamesPlayed, &user.BestScore, &user.TotalScore)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNoUser
	}
	if err != nil {
		return User{}, fmt.Errorf("load user: %w", err)
	}
	user.hash = []byte(hash)
	user.CreatedAt, _ = time.Parse(time.RFC3339, created)
	return user, nil
}

// ClaimGuest moves everything recorded under a guest ID to userID.
// A daily result the account already has for the same date wins over the guest's.
func (u *Users) ClaimGuest(ctx context.Context, guestID, userID string) error {
	if guestID == "" || userID == "" {
		return nil
	}
	tx, err := u.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`UPDATE games SET user_id = ?, anonymous_id = NULL WHERE anonymous_id = ?`, userID, guestID); err != nil {
		return fmt.Errorf("claim games: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE OR IGNORE daily_results SET user_id = ? WHERE user_id = ?`, userID, guestID); err != nil {
		return fmt.Errorf("claim daily results: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM daily_results WHERE user_id = ?`, guestID); err != nil {
		return fmt.Errorf("drop shadowed daily results: %w", err)
	}
	return tx.Commit()
}
