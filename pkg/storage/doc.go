/*
Package storage provides BoltDB-backed local state for the lookout CLI.

Nothing here is session state: the supervisor always re-derives the
session from the worker. The store keeps what the user wants to survive a
restart.

# Buckets

	profiles   name (lower-cased) -> JSON types.Profile
	events     big-endian sequence -> JSON events.Event

Profiles are named session configs, so `lookout start --profile garage`
does not need the camera URL and flags repeated. The events bucket is an
append-only history written by a Recorder subscribed to the supervisor's
broker while `lookout watch` runs; PruneEvents bounds it.

# Usage

	store, err := storage.NewBoltStore(cfg.DataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	err = store.SaveProfile(&types.Profile{
		Name:   "garage",
		Config: types.SessionConfig{CameraURL: "rtsp://10.0.0.20/live"},
	})

The database file is lookout.db inside the data directory, opened with a
one second lock timeout.
*/
package storage
