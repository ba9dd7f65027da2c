package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

var ErrUserNotFound = errors.New("user not found")

const (
	DefaultUserLimit = 50
	MaxUserLimit     = 200
)

// Querier is the subset of *pgxpool.Pool the user queries need.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// User is a row of telegram_users as seen by the support team.
type User struct {
	ID                  int64      `json:"user_id"`
	Username            *string    `json:"username"`
	FirstName           *string    `json:"first_name"`
	BirthDate           *string    `json:"birth_date"`
	RegistrationDate    *time.Time `json:"registration_date"`
	SubscriptionType    *string    `json:"subscription_type"`
	SubscriptionEndDate *time.Time `json:"subscription_end_date"`
	IsActive            bool       `json:"is_active"`
	IsAdmin             bool       `json:"is_admin"`
}

type ListUsersInput struct {
	Limit  int
	Offset int
	Query  string
}

// Normalize clamps paging to sane bounds.
func (in ListUsersInput) Normalize() ListUsersInput {
	switch {
	case in.Limit <= 0:
		in.Limit = DefaultUserLimit
	case in.Limit > MaxUserLimit:
		in.Limit = MaxUserLimit
	}
	if in.Offset < 0 {
		in.Offset = 0
	}
	in.Query = strings.TrimSpace(in.Query)
	return in
}

type UserPage struct {
	Users  []User `json:"users"`
	Total  int64  `json:"total"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

type UserStats struct {
	Total               int64 `json:"total"`
	Admins              int64 `json:"admins"`
	Active              int64 `json:"active"`
	Trial               int64 `json:"trial"`
	// Premium counts every premium_* plan (premium_test today).
	Premium             int64 `json:"premium"`
	ActiveSubscriptions int64 `json:"active_subscriptions"`
	ExpiredSubscription int64 `json:"expired_subscriptions"`
}

const userColumns = `user_id, username, first_name, birth_date, registration_date,
       subscription_type, subscription_end_date, COALESCE(is_active, false), COALESCE(is_admin, false)`

func ListUsers(ctx context.Context, q Querier, input ListUsersInput) (UserPage, error) {
	input = input.Normalize()
	pattern := searchPattern(input.Query)

	var total int64
	if err := q.QueryRow(ctx, `
SELECT COUNT(*)
FROM telegram_users
WHERE $1 = '' OR username ILIKE $1 OR first_name ILIKE $1
`, pattern).Scan(&total); err != nil {
		return UserPage{}, fmt.Errorf("count users: %w", err)
	}

	rows, err := q.Query(ctx, `
SELECT `+userColumns+`
FROM telegram_users
WHERE $1 = '' OR username ILIKE $1 OR first_name ILIKE $1
ORDER BY registration_date DESC NULLS LAST, user_id
LIMIT $2 OFFSET $3
`, pattern, input.Limit, input.Offset)
	if err != nil {
		return UserPage{}, fmt.Errorf("list users: %w", err)
	}
	users, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (User, error) {
		u, err := scanUser(row)
		if err != nil {
			return User{}, err
		}
		return *u, nil
	})
	if err != nil {
		return UserPage{}, fmt.Errorf("scan users: %w", err)
	}
	if users == nil {
		users = []User{}
	}
	return UserPage{Users: users, Total: total, Limit: input.Limit, Offset: input.Offset}, nil
}

func GetUser(ctx context.Context, q Querier, id int64) (*User, error) {
	row := q.QueryRow(ctx, `
SELECT `+userColumns+`
FROM telegram_users
WHERE user_id = $1
`, id)
	return scanUser(row)
}

func GetUserStats(ctx context.Context, q Querier) (UserStats, error) {
	var s UserStats
	err := q.QueryRow(ctx, `
SELECT COUNT(*),
       COUNT(*) FILTER (WHERE is_admin),
       COUNT(*) FILTER (WHERE is_active),
       COUNT(*) FILTER (WHERE subscription_type = 'trial'),
       COUNT(*) FILTER (WHERE subscription_type LIKE 'premium%'),
       COUNT(*) FILTER (WHERE subscription_end_date > now()),
       COUNT(*) FILTER (WHERE subscription_end_date <= now())
FROM telegram_users
`).Scan(&s.Total, &s.Admins, &s.Active, &s.Trial, &s.Premium, &s.ActiveSubscriptions, &s.ExpiredSubscription)
	if err != nil {
		return UserStats{}, fmt.Errorf("user stats: %w", err)
	}
	return s, nil
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Username, &u.FirstName, &u.BirthDate, &u.RegistrationDate,
		&u.SubscriptionType, &u.SubscriptionEndDate, &u.IsActive, &u.IsAdmin); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

// searchPattern turns a free-text query into an ILIKE substring pattern.
func searchPattern(query string) string {
	if query == "" {
		return ""
	}
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(query) + "%"
}
