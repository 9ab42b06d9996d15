package serviceerr

import "errors"

var ErrNotFound = errors.New("not found")
var ErrDecode = errors.New("token decode failed")
var ErrTokenExpired = errors.New("token expired")
var ErrMissingToken = errors.New("Token alınamadı")
var ErrLoginInProgress = errors.New("login already in progress")
var ErrSuperseded = errors.New("response superseded by a newer transition")
var ErrStorageUnavailable = errors.New("credential storage unavailable")
