package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"kasirpos/backend/internal/config"
)

func TestValidateConfigRejectsBadDraftSettings(t *testing.T) {
	cases := map[string]config.Config{
		"unknown backend":     {DraftBackend: "etcd", DraftKey: "k"},
		"redis without addr":  {DraftBackend: config.DraftBackendRedis, DraftKey: "k"},
		"sqlite without path": {DraftBackend: config.DraftBackendSQLite, DraftKey: "k"},
		"memory without key":  {DraftBackend: config.DraftBackendMemory},
	}
	for name, cfg := range cases {
		assert.Error(t, validateConfig(cfg), name)
	}
}

func TestValidateConfigAcceptsDefaults(t *testing.T) {
	t.Setenv("DRAFT_BACKEND", "")
	assert.NoError(t, validateConfig(config.Load()))
	assert.NoError(t, validateConfig(config.Config{DraftBackend: config.DraftBackendRedis, RedisAddr: "127.0.0.1:6379", DraftKey: "k"}))
}
