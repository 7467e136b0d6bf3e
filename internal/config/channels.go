// Copyright (c) 2025 drowolath
// Licensed under the MIT License.
// See the LICENSE file in the repository root for details.

package config

import (
	"fmt"
	"strings"
)

// ResolveChannel maps a configured channel name (case-insensitive) to its
// service id. A bare numeric service id is returned unchanged.
func (c Config) ResolveChannel(nameOrID string) (string, error) {
	key := strings.TrimSpace(nameOrID)
	if id, ok := c.Channels[key]; ok {
		return id, nil
	}
	for name, id := range c.Channels {
		if strings.EqualFold(name, key) {
			return id, nil
		}
	}
	if isServiceID(key) {
		return key, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownChannel, nameOrID)
}

func isServiceID(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
