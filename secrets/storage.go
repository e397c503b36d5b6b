// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package secrets manages the charm-generated secret material persisted
// in the peer-scoped secret storage relation.
package secrets

import (
	"encoding/base64"

	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/juju/utils/v4"
)

var logger = loggo.GetLogger("paascharm.secrets")

const (
	// ErrUninitialized is returned on any read or write of the secret
	// storage before every declared key has converged to a non-empty
	// value. Hitting it indicates a caller-ordering bug, not a
	// user-facing condition: callers must check IsInitialized first.
	ErrUninitialized = errors.ConstError("secret storage is not initialized")

	// ErrNotLeader is returned when a non-leader unit attempts to
	// mutate the shared secret store.
	ErrNotLeader = errors.ConstError("only the leader unit can write secret storage")
)

// secretEntropyBytes is the amount of entropy in each generated secret
// value, encoded as URL-safe base64.
const secretEntropyBytes = 32

// Store is the durable peer-scoped key/value store backing the secret
// storage, typically the application databag of the secret-storage peer
// relation. Get reports absence through its second return value; Set is
// only valid on the leader unit.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string) error
}

// Leadership reports whether this unit is the elected leader.
type Leadership interface {
	IsLeader() bool
}

// Storage manages a named set of generated secrets in a Store. Initial
// values are generated exactly once, written by the leader; followers
// treat the store as read-only until it converges.
type Storage struct {
	store      Store
	leadership Leadership
	keys       []string
}

// NewStorage returns a Storage managing the given secret keys.
func NewStorage(store Store, leadership Leadership, keys ...string) *Storage {
	return &Storage{store: store, leadership: leadership, keys: keys}
}

// IsInitialized reports whether every declared key holds a non-empty
// value. Reads and writes before that point fail with ErrUninitialized.
func (s *Storage) IsInitialized() bool {
	for _, key := range s.keys {
		if value, ok := s.store.Get(key); !ok || value == "" {
			return false
		}
	}
	return true
}

// EnsureInitialValues generates and stores a value for every declared
// key that does not have one yet. Only the leader writes; on follower
// units this is a no-op and the store converges via the relation.
func (s *Storage) EnsureInitialValues() error {
	if !s.leadership.IsLeader() {
		return nil
	}
	for _, key := range s.keys {
		if value, ok := s.store.Get(key); ok && value != "" {
			continue
		}
		value, err := generateSecret()
		if err != nil {
			return errors.Trace(err)
		}
		if err := s.store.Set(key, value); err != nil {
			return errors.Annotatef(err, "storing initial value for %q", key)
		}
		logger.Infof("generated initial secret value for %q", key)
	}
	return nil
}

// GetSecret retrieves the secret value for key.
func (s *Storage) GetSecret(key string) (string, error) {
	if !s.IsInitialized() {
		return "", errors.Trace(ErrUninitialized)
	}
	value, ok := s.store.Get(key)
	if !ok {
		return "", errors.NotFoundf("secret %q", key)
	}
	return value, nil
}

// SetSecret stores a new secret value for key. Only the leader may
// write; followers get ErrNotLeader.
func (s *Storage) SetSecret(key, value string) error {
	if !s.IsInitialized() {
		return errors.Trace(ErrUninitialized)
	}
	if !s.leadership.IsLeader() {
		return errors.Trace(ErrNotLeader)
	}
	return errors.Trace(s.store.Set(key, value))
}

// ResetSecret generates and stores a fresh value for key, subject to
// the same initialization and leadership checks as SetSecret.
func (s *Storage) ResetSecret(key string) error {
	value, err := generateSecret()
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(s.SetSecret(key, value))
}

func generateSecret() (string, error) {
	raw, err := utils.RandomBytes(secretEntropyBytes)
	if err != nil {
		return "", errors.Trace(err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
