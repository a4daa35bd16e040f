package domain

import "errors"

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrEmailTaken      = errors.New("an account with this email already exists")
	ErrSessionNotFound = errors.New("session not found")
)
