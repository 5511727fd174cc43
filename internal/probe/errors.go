package probe

import "errors"

// ErrUnsupportedPlatform is returned for probes the current OS cannot
// run (registry actions anywhere but Windows).
var ErrUnsupportedPlatform = errors.New("registry operations are only supported on Windows")
