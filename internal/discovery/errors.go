package discovery

import "errors"

// Sentinels for resolution failures. Returned errors wrap one of these, so
// callers match with errors.Is.
var (
	// ErrNotFound means browsing ended, or the matched instance did not
	// resolve, without producing an address.
	ErrNotFound = errors.New("no matching service instance")
	// ErrTimeout means the deadline expired before an address was found.
	ErrTimeout = errors.New("discovery timed out")
	// ErrDiscoveryStart means the discovery session could not be started.
	ErrDiscoveryStart = errors.New("discovery failed to start")
)
