package core

import "errors"

var (
	// ErrNoPath is returned by routing queries when the target is
	// unreachable from the source in the current graph.
	ErrNoPath = errors.New("no path")

	// ErrUnknownNode is returned when a query references an identity
	// that is not present in the current graph.
	ErrUnknownNode = errors.New("unknown node")

	// ErrNoTopology is returned for queries made before the first
	// successful refresh.
	ErrNoTopology = errors.New("no topology snapshot")

	// ErrRebuildInProgress is returned when Refresh is called while a
	// rebuild is already running. The caller should retry after the
	// in-flight tick completes.
	ErrRebuildInProgress = errors.New("rebuild in progress")

	// ErrDuplicateSatellite marks a refresh input listing the same
	// satellite identity twice.
	ErrDuplicateSatellite = errors.New("duplicate satellite")

	// ErrBadDefinition marks an invalid ground-station or user
	// registration.
	ErrBadDefinition = errors.New("invalid definition")
)
