package service

import "errors"

var (
	ErrInvalidBody   = errors.New("invalid JSON body")
	ErrMissingFields = errors.New("Missing fields")
)
