package repository

import "errors"

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrEmailNotFound   = errors.New("email not found")
	ErrInvalidInput    = errors.New("invalid input parameters")
)
