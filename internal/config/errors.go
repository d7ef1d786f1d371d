package config

import "errors"

var (
	ErrMissingRedisURL  = errors.New("missing redis.url")
	ErrMissingMasterKey = errors.New("missing masterKey")
)
