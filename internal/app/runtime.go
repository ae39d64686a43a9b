package app

import (
	"os"
	"strconv"
	"strings"
)

// TestModeEnv makes the binaries return from main before dialing Redis or a store.
const TestModeEnv = "KHATA_TEST_MODE"

// InTestMode reports whether KHATA_TEST_MODE holds a true boolean such as "1" or "true".
// The variable is read on every call so tests may toggle it with t.Setenv.
func InTestMode() bool {
	on, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(TestModeEnv)))
	return err == nil && on
}
