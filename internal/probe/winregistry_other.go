//go:build !windows

package probe

import (
	"fmt"
	"runtime"
)

// RegistryAction is unavailable on this platform
func RegistryAction(action, keyPath, valueName, value string) (map[string]interface{}, error) {
	return nil, fmt.Errorf("%w (current OS: %s)", ErrUnsupportedPlatform, runtime.GOOS)
}
