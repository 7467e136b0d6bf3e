// Copyright (c) 2025 drowolath
// Licensed under the MIT License.
// See the LICENSE file in the repository root for details.

package config

import (
	"fmt"

	"github.com/joho/godotenv"
)

// LoadEnvFiles exports the variables of each dotenv file into the process
// environment. Variables that are already set keep their value, so the real
// environment still wins over the file.
func LoadEnvFiles(paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	if err := godotenv.Load(paths...); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}
