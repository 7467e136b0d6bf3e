// Copyright (c) 2025 drowolath
// Licensed under the MIT License.
// See the LICENSE file in the repository root for details.

// Package config loads the dvbboxes configuration: the site/replica
// topology, channel names, store settings and the HTTP listener.
//
// Precedence is ENV > file > defaults. The YAML file is parsed strictly:
// unknown keys are fatal.
package config
