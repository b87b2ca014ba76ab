// Package service provides the operations API handlers call. Business
// logic and error classification live here, not in handlers.
package service

import (
	"database/sql"
	"log"
	"time"

	"github.com/sieve-urls/sieve/internal/registry"
	"github.com/sieve-urls/sieve/internal/state"
)

// ServiceError wraps an error with a code for API response mapping.
type ServiceError struct {
	Code    string // INVALID_ARGUMENT, NOT_FOUND, CONFLICT, INTERNAL
	Message string
	Err     error
}

func (e *ServiceError) Error() string { return e.Message }
func (e *ServiceError) Unwrap() error { return e.Err }

func invalidArg(msg string) *ServiceError {
	return &ServiceError{Code: "INVALID_ARGUMENT", Message: msg}
}

func notFound(msg string) *ServiceError {
	return &ServiceError{Code: "NOT_FOUND", Message: msg}
}

func conflict(msg string) *ServiceError {
	return &ServiceError{Code: "CONFLICT", Message: msg}
}

func internal(msg string, err error) *ServiceError {
	return &ServiceError{Code: "INTERNAL", Message: msg, Err: err}
}

// SystemInfo contains version and runtime information.
type SystemInfo struct {
	Version   string    `json:"version"`
	GitCommit string    `json:"git_commit"`
	BuildTime string    `json:"build_time"`
	StartedAt time.Time `json:"started_at"`
}

// Service owns the URL rule registry and its persistence. All API
// operations go through it.
type Service struct {
	Registry *registry.Registry
	DB       *sql.DB
	Info     SystemInfo
}

// New wires a service over a registry and its state database. db may be nil
// in tests that never flush.
func New(reg *registry.Registry, db *sql.DB, info SystemInfo) *Service {
	return &Service{Registry: reg, DB: db, Info: info}
}

// GetSystemInfo returns version and uptime information.
func (s *Service) GetSystemInfo() SystemInfo {
	return s.Info
}

// FlushIfDirty writes the registry to the state database when something
// changed since the last flush. Safe to call from a schedule and at
// shutdown.
func (s *Service) FlushIfDirty() error {
	if s.DB == nil || !s.Registry.IsDirty() {
		return nil
	}
	if err := state.SaveSnapshot(s.DB, s.Registry.Export()); err != nil {
		return internal("flush registry snapshot", err)
	}
	s.Registry.SetClean()
	log.Printf("[service] registry snapshot flushed")
	return nil
}
