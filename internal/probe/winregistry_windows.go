//go:build windows

package probe

import (
	"fmt"
	"strings"

	"golang.org/x/sys/windows/registry"
)

var rootKeys = map[string]registry.Key{
	"HKEY_LOCAL_MACHINE":  registry.LOCAL_MACHINE,
	"HKLM":                registry.LOCAL_MACHINE,
	"HKEY_CURRENT_USER":   registry.CURRENT_USER,
	"HKCU":                registry.CURRENT_USER,
	"HKEY_CLASSES_ROOT":   registry.CLASSES_ROOT,
	"HKCR":                registry.CLASSES_ROOT,
	"HKEY_USERS":          registry.USERS,
	"HKU":                 registry.USERS,
	"HKEY_CURRENT_CONFIG": registry.CURRENT_CONFIG,
	"HKCC":                registry.CURRENT_CONFIG,
}

func splitKeyPath(keyPath string) (registry.Key, string, error) {
	parts := strings.SplitN(strings.Trim(keyPath, `\`), `\`, 2)
	root, ok := rootKeys[strings.ToUpper(parts[0])]
	if !ok {
		return 0, "", fmt.Errorf("unknown registry root key '%s'", parts[0])
	}
	sub := ""
	if len(parts) == 2 {
		sub = parts[1]
	}
	return root, sub, nil
}

// RegistryAction performs a GET, SET or DELETE of a string value under
// the given key path (e.g. `HKCU\Software\Example`).
func RegistryAction(action, keyPath, valueName, value string) (map[string]interface{}, error) {
	root, sub, err := splitKeyPath(keyPath)
	if err != nil {
		return nil, err
	}

	switch action {
	case "GET":
		k, err := registry.OpenKey(root, sub, registry.QUERY_VALUE)
		if err != nil {
			return nil, fmt.Errorf("failed to open key '%s': %w", keyPath, err)
		}
		defer k.Close()

		v, _, err := k.GetStringValue(valueName)
		if err != nil {
			return nil, fmt.Errorf("failed to read value '%s' under '%s': %w", valueName, keyPath, err)
		}
		return map[string]interface{}{
			"action": action,
			"key":    keyPath,
			"name":   valueName,
			"value":  v,
		}, nil

	case "SET":
		k, _, err := registry.CreateKey(root, sub, registry.SET_VALUE)
		if err != nil {
			return nil, fmt.Errorf("failed to open key '%s' for writing: %w", keyPath, err)
		}
		defer k.Close()

		if err := k.SetStringValue(valueName, value); err != nil {
			return nil, fmt.Errorf("failed to set value '%s' under '%s': %w", valueName, keyPath, err)
		}
		return map[string]interface{}{
			"action": action,
			"key":    keyPath,
			"name":   valueName,
			"status": "set",
		}, nil

	case "DELETE":
		k, err := registry.OpenKey(root, sub, registry.SET_VALUE)
		if err != nil {
			return nil, fmt.Errorf("failed to open key '%s' for writing: %w", keyPath, err)
		}
		defer k.Close()

		if err := k.DeleteValue(valueName); err != nil {
			return nil, fmt.Errorf("failed to delete value '%s' under '%s': %w", valueName, keyPath, err)
		}
		return map[string]interface{}{
			"action": action,
			"key":    keyPath,
			"name":   valueName,
			"status": "deleted",
		}, nil

	default:
		return nil, fmt.Errorf("unsupported registry action '%s'", action)
	}
}
