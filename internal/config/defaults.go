// Copyright (c) 2025 drowolath
// Licensed under the MIT License.
// See the LICENSE file in the repository root for details.

package config

import "time"

// DefaultPath is read when no --config flag or DVBBOXES_CONFIG is given.
const DefaultPath = "/etc/dvbboxes/config.yaml"

// Defaults returns the configuration used for every key the file and the
// environment leave unset.
func Defaults() Config {
	return Config{
		Log:      LogConfig{Level: "info", Service: "dvbboxes"},
		Timezone: "Local",
		Anchor:   "07:30:00",
		Media:    MediaConfig{Prefix: "/opt/tsfiles/", Suffix: ".ts"},
		DefaultStore: StoreConfig{
			Addr: "localhost:6379",
			DB:   1,
		},
		Databases:   DatabasesConfig{Programs: 0, Media: 1},
		Timeouts:    TimeoutsConfig{Dial: 5 * time.Second, Read: 10 * time.Second, Write: 10 * time.Second},
		Concurrency: 8,
		Breaker:     BreakerConfig{Threshold: 3, Reset: 30 * time.Second},
		Channels:    map[string]string{},
		Notify: NotifyConfig{
			Enabled: true,
			Command: []string{"ssh", "{host}", "dvbbox", "program", "{day}", "--service_id", "{channel}", "--update"},
			Timeout: 30 * time.Second,
		},
		API: APIConfig{Listen: ":8080", RateLimit: 600, RateWindow: time.Minute},
	}
}
