package repository

import "errors"

var (
	ErrNotFound      = errors.New("repository: not found")
	ErrAlreadyExists = errors.New("repository: already exists")
	ErrUnavailable   = errors.New("repository: unavailable")
	ErrInvalidInput  = errors.New("repository: invalid input")
)
