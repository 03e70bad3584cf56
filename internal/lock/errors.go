package lock

import "errors"

// ErrUnavailable is returned by Acquire when the platform hook that enables
// multicast reception fails. Check with errors.Is().
var ErrUnavailable = errors.New("multicast lock unavailable")
