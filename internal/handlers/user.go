package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jackwhot/jackwhot-service/internal/auth"
	"github.com/jackwhot/jackwhot-service/internal/database"
	"github.com/jackwhot/jackwhot-service/internal/models"
)

// EnsureEphemeralUser returns the authenticated user's ID, creating a guest
// account (and setting its auth cookie) when the request carries no valid
// token. Guests play under a generated name until they claim the account.
func EnsureEphemeralUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, error) {
	cookieHeader := r.Header.Get("Cookie")
	if strings.Contains(cookieHeader, "auth_token=") {
		token := extractCookieToken(cookieHeader, "auth_token")
		userID, err := auth.AuthenticateJWT(token)
		if err == nil {
			uuidVal, parseErr := uuid.Parse(userID)
			if parseErr != nil {
				return uuid.Nil, fmt.Errorf("invalid user ID in token: %w", parseErr)
			}
			return uuidVal, nil
		}
		// invalid/expired token falls through to the guest path
	}
	return createGuestUser(w)
}

func createGuestUser(w http.ResponseWriter) (uuid.UUID, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to generate guest id: %w", err)
	}
	guest := models.User{
		ID:          id,
		Username:    "guest-" + id.String()[:8],
		IsEphemeral: true,
	}
	if err := database.CreateUser(context.Background(), &guest); err != nil {
		return uuid.Nil, fmt.Errorf("failed to create guest user: %w", err)
	}
	token, err := auth.CreateJWT(guest.ID.String())
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create guest JWT: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     "auth_token",
		Value:    token,
		HttpOnly: true,
		Path:     "/",
	})
	return guest.ID, nil
}

// CreateUserHandler registers a username/PIN account.
func CreateUserHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		PIN      string `json:"pin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if req.Username == "" {
		http.Error(w, "username is required", http.StatusBadRequest)
		return
	}
	if err := auth.ValidatePIN(req.PIN); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	user := models.User{
		Username:    req.Username,
		PIN:         req.PIN,
		IsEphemeral: false,
	}

	err := database.CreateUser(r.Context(), &user)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			http.Error(w, "username already exists", http.StatusConflict)
			return
		}
		http.Error(w, "error creating user", http.StatusInternalServerError)
		return
	}

	user.PIN = ""
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(user)
}

type loginRequest struct {
	Username string `json:"username"`
	PIN      string `json:"pin"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// LoginHandler authenticates a username/PIN pair and returns a JWT, both in
// the response body and as an auth_token cookie.
func LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}

	token, err := database.AuthenticateUser(r.Context(), req.Username, req.PIN)
	if err != nil {
		log.Printf("failed to authenticate user: %v", err)
		http.Error(w, "authentication failed", http.StatusForbidden)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "auth_token",
		Value:    token,
		HttpOnly: true,
		Path:     "/",
		MaxAge:   auth.TOKEN_EXPIRE_TIME_SEC,
	})

	resp := loginResponse{Token: token}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, "failed to write response", http.StatusInternalServerError)
		return
	}
}

type claimEphemeralRequest struct {
	Username string `json:"username"`
	PIN      string `json:"pin"`
}

// ClaimEphemeralHandler turns a guest account into a registered one,
// keeping its accumulated points.
func ClaimEphemeralHandler(w http.ResponseWriter, r *http.Request) {
	token := extractCookieToken(r.Header.Get("Cookie"), "auth_token")
	userIDStr, err := auth.AuthenticateJWT(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusForbidden)
		return
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		http.Error(w, "invalid user id in token", http.StatusForbidden)
		return
	}

	u, err := database.GetUserByID(r.Context(), userID)
	if err != nil {
		http.Error(w, "user not found", http.StatusNotFound)
		return
	}
	if !u.IsEphemeral {
		http.Error(w, "user is not ephemeral", http.StatusBadRequest)
		return
	}

	var req claimEphemeralRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid claim payload", http.StatusBadRequest)
		return
	}
	if err := auth.ValidatePIN(req.PIN); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.Username != "" {
		u.Username = req.Username
	}
	u.PIN = req.PIN
	u.IsEphemeral = false

	if err := database.UpdateUserCredentials(r.Context(), u); err != nil {
		http.Error(w, "failed to finalize ephemeral user", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "ephemeral user claimed successfully")
}

// ProfileHandler returns the authenticated user's record.
func ProfileHandler(w http.ResponseWriter, r *http.Request) {
	token := extractCookieToken(r.Header.Get("Cookie"), "auth_token")
	userIDStr, err := auth.AuthenticateJWT(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusForbidden)
		return
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		http.Error(w, "invalid user id in token", http.StatusForbidden)
		return
	}

	u, err := database.GetUserByID(r.Context(), userID)
	if err != nil {
		http.Error(w, "user not found", http.StatusNotFound)
		return
	}
	u.PIN = ""

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(u)
}

// LeaderboardHandler returns the top users by points.
func LeaderboardHandler(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil {
			limit = v
		}
	}
	users, err := database.Leaderboard(r.Context(), limit)
	if err != nil {
		log.Printf("leaderboard query failed: %v", err)
		http.Error(w, "failed to fetch leaderboard", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(users)
}
