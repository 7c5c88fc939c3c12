package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jackwhot/jackwhot-service/internal/auth"
	"github.com/jackwhot/jackwhot-service/internal/models"
)

func CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		id, err := uuid.NewRandom()
		if err != nil {
			return fmt.Errorf("failed to generate user id: %w", err)
		}
		user.ID = id
	}

	// ephemeral guests have no PIN; everyone else meets the policy
	if !user.IsEphemeral {
		if err := auth.ValidatePIN(user.PIN); err != nil {
			return err
		}
	}
	hash := ""
	if user.PIN != "" {
		var err error
		hash, err = auth.CreateHash(user.PIN, auth.Params)
		if err != nil {
			return fmt.Errorf("failed to hash pin: %w", err)
		}
	}
	user.PIN = hash

	q := `INSERT INTO users (id, username, pin, is_ephemeral, points, matches_won)
	      VALUES ($1, $2, $3, $4, 0, 0)`

	err := pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, execErr := tx.Exec(ctx, q,
			user.ID, user.Username, user.PIN, user.IsEphemeral,
		)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	q := `
	SELECT id, username, pin, is_ephemeral, points, matches_won
	FROM users
	WHERE username=$1
	`
	err := DB.QueryRow(ctx, q, username).Scan(
		&u.ID, &u.Username, &u.PIN,
		&u.IsEphemeral, &u.Points, &u.MatchesWon,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	q := `
	SELECT id, username, pin, is_ephemeral, points, matches_won
	FROM users
	WHERE id=$1
	`
	err := DB.QueryRow(ctx, q, id).Scan(
		&u.ID, &u.Username, &u.PIN,
		&u.IsEphemeral, &u.Points, &u.MatchesWon,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// AuthenticateUser checks the username/PIN pair and returns a signed JWT.
func AuthenticateUser(ctx context.Context, username, pin string) (string, error) {
	user, err := GetUserByUsername(ctx, username)
	if err != nil {
		return "", fmt.Errorf("user not found or db error: %w", err)
	}

	match, err := auth.ComparePINAndHash(pin, user.PIN)
	if err != nil || !match {
		return "", fmt.Errorf("invalid credentials")
	}

	token, err := auth.CreateJWT(user.ID.String())
	if err != nil {
		return "", fmt.Errorf("failed to create jwt: %w", err)
	}

	return token, nil
}

// AddPoints credits a finished match: points for every winner, plus a win
// tally bump when won is set.
func AddPoints(ctx context.Context, username string, points int, won bool) error {
	q := `UPDATE users SET points = points + $1, matches_won = matches_won + $2 WHERE username = $3`
	winInc := 0
	if won {
		winInc = 1
	}
	err := pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, e := tx.Exec(ctx, q, points, winInc, username)
		return e
	})
	if err != nil {
		return fmt.Errorf("failed to add points for %s: %w", username, err)
	}
	return nil
}

// Leaderboard returns the top registered users ordered by points.
func Leaderboard(ctx context.Context, limit int) ([]models.User, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	q := `
	SELECT id, username, is_ephemeral, points, matches_won
	FROM users
	WHERE NOT is_ephemeral
	ORDER BY points DESC, matches_won DESC, username ASC
	LIMIT $1
	`
	rows, err := DB.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("leaderboard query: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.IsEphemeral, &u.Points, &u.MatchesWon); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
