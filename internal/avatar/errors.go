package avatar

import "errors"

// Errors returned by avatar operations.
var (
	// ErrAvatarNotFound indicates no avatar is loaded for the owner.
	ErrAvatarNotFound = errors.New("avatar not found")

	// ErrNoSource indicates an avatar has no directory to reload from.
	ErrNoSource = errors.New("avatar has no source directory")

	// ErrWatcherClosed indicates the watcher has been closed.
	ErrWatcherClosed = errors.New("watcher is closed")

	// ErrNotDirectory indicates a bundle path is not a directory.
	ErrNotDirectory = errors.New("not a directory")
)
