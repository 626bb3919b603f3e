package storage

import (
	"errors"

	"github.com/cuemby/lookout/pkg/events"
	"github.com/cuemby/lookout/pkg/types"
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = errors.New("not found")

// Store defines the interface for local client state
type Store interface {
	// Profiles
	SaveProfile(profile *types.Profile) error
	GetProfile(name string) (*types.Profile, error)
	ListProfiles() ([]*types.Profile, error)
	DeleteProfile(name string) error

	// Event history
	AppendEvent(event *events.Event) error
	ListEvents(limit int) ([]*events.Event, error)
	PruneEvents(keep int) (int, error)

	// Utility
	Close() error
}
