// Copyright (c) 2025 drowolath
// Licensed under the MIT License.
// See the LICENSE file in the repository root for details.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Topology fields
	FieldSite      = "site"
	FieldReplica   = "replica"
	FieldNamespace = "namespace"
	FieldAddr      = "addr"

	// Schedule fields
	FieldDay     = "day"
	FieldChannel = "channel"
	FieldKey     = "key"
	FieldAsset   = "asset"
	FieldItems   = "items"
)
