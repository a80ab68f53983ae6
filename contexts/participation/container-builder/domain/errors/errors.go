package errors

import "errors"

var (
	ErrInvalidContainerInput = errors.New("invalid container request")
	ErrContainerNotFound     = errors.New("container not found")
	ErrDownloadTokenInvalid  = errors.New("download token is not valid for this container")
	ErrDownloadTokenExpired  = errors.New("download token has expired")
)
