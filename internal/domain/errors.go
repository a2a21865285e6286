package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrBlobNotFound  = errors.New("blob not found")
	ErrInvalidBlob   = errors.New("invalid distribution blob")
	ErrInvalidWeight = errors.New("invalid trust weight")
	ErrOffline       = errors.New("client is offline")
)
