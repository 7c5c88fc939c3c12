package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jackwhot/jackwhot-service/internal/auth"
	"github.com/jackwhot/jackwhot-service/internal/models"
)

// UpdateUserCredentials updates a user's username/PIN and ephemeral flag,
// used when a guest claims their account.
func UpdateUserCredentials(ctx context.Context, u *models.User) error {
	hashed, err := auth.CreateHash(u.PIN, auth.Params)
	if err != nil {
		return err
	}

	q := `UPDATE users SET username = $1, pin = $2, is_ephemeral = $3 WHERE id = $4`
	err = pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, e := tx.Exec(ctx, q, u.Username, hashed, u.IsEphemeral, u.ID)
		return e
	})
	if err != nil {
		return fmt.Errorf("failed to update user credentials: %w", err)
	}
	return nil
}
