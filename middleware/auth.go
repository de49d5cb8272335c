// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package middleware provides gin middleware for the gateway.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nightcord/nako-gateway/datatypes"
)

// ErrUnauthorized is returned when token validation fails.
var ErrUnauthorized = errors.New("unauthorized")

// authInfoKey is the gin context key holding the authenticated user.
const authInfoKey = "authInfo"

// UserInfo is the identity attached to a request after successful
// authentication.
type UserInfo struct {
	// UserID is the unique identifier for the authenticated user.
	UserID string

	// DisplayName is the user's display name. May be empty.
	DisplayName string
}

// AuthProvider validates bearer tokens and returns user identity.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type AuthProvider interface {
	// Validate checks the token and returns the user's identity.
	//
	// Returns ErrUnauthorized (possibly wrapped) when the token is
	// invalid or expired; other errors indicate provider failures.
	Validate(ctx context.Context, token string) (*UserInfo, error)
}

// NopAuthProvider accepts every request as a local user.
//
// Used when no token store is configured, so the gateway can run in
// single-user deployments without auth infrastructure.
type NopAuthProvider struct{}

// Validate always succeeds. The token is ignored.
func (p *NopAuthProvider) Validate(_ context.Context, _ string) (*UserInfo, error) {
	return &UserInfo{UserID: "local-user"}, nil
}

// PGAuthProvider validates tokens against a Postgres token store.
//
// # Description
//
// Tokens live in an access_tokens table joined to users. A token is
// valid when it exists and either has no expiry or its expiry is in
// the future. The pool is safe for concurrent use.
type PGAuthProvider struct {
	pool *pgxpool.Pool
}

// NewPGAuthProvider connects a token store backed by the given DSN.
func NewPGAuthProvider(ctx context.Context, dsn string) (*PGAuthProvider, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing auth database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating auth connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging auth database: %w", err)
	}

	return &PGAuthProvider{pool: pool}, nil
}

// Validate implements AuthProvider against the token store.
func (p *PGAuthProvider) Validate(ctx context.Context, token string) (*UserInfo, error) {
	const query = `
		SELECT u.id, u.display_name
		FROM access_tokens t
		JOIN users u ON u.id = t.user_id
		WHERE t.token = $1
		  AND (t.expires_at IS NULL OR t.expires_at > now())`

	var info UserInfo
	err := p.pool.QueryRow(ctx, query, token).Scan(&info.UserID, &info.DisplayName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("unknown or expired token: %w", ErrUnauthorized)
		}
		return nil, fmt.Errorf("token lookup failed: %w", err)
	}
	return &info, nil
}

// Close releases the underlying pool.
func (p *PGAuthProvider) Close() {
	p.pool.Close()
}

// AuthMiddleware enforces bearer-token authentication.
//
// # Description
//
// Extracts the bearer token from the Authorization header, validates it
// through the provider, and stores the resulting UserInfo in the gin
// context. Requests without a valid token are rejected with a 401 JSON
// error body before reaching any handler.
func AuthMiddleware(provider AuthProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := extractBearerToken(c.GetHeader("Authorization"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				datatypes.NewErrorResponse(datatypes.ErrCodeUnauthorized, "Missing or malformed Authorization header"))
			return
		}

		info, err := provider.Validate(c.Request.Context(), token)
		if err != nil {
			if !errors.Is(err, ErrUnauthorized) {
				slog.Error("Auth provider failure", "error", err)
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				datatypes.NewErrorResponse(datatypes.ErrCodeUnauthorized, "Invalid or expired token"))
			return
		}

		SetAuthInfo(c, info)
		c.Next()
	}
}

// extractBearerToken parses an RFC 7235 Authorization header.
// The scheme comparison is case-insensitive.
func extractBearerToken(header string) (string, error) {
	if header == "" {
		return "", fmt.Errorf("missing authorization header: %w", ErrUnauthorized)
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", fmt.Errorf("malformed authorization header: %w", ErrUnauthorized)
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", fmt.Errorf("empty bearer token: %w", ErrUnauthorized)
	}
	return token, nil
}

// SetAuthInfo stores the authenticated user in the gin context.
func SetAuthInfo(c *gin.Context, info *UserInfo) {
	c.Set(authInfoKey, info)
}

// GetAuthInfo retrieves the authenticated user, if any.
func GetAuthInfo(c *gin.Context) (*UserInfo, bool) {
	value, exists := c.Get(authInfoKey)
	if !exists {
		return nil, false
	}
	info, ok := value.(*UserInfo)
	return info, ok
}

var (
	_ AuthProvider = (*NopAuthProvider)(nil)
	_ AuthProvider = (*PGAuthProvider)(nil)
)
