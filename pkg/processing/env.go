package processing

import (
	"fmt"
	"maps"
	"os"

	"github.com/joho/godotenv"
)

// DefaultPassEnv names the host variables every run inherits. Everything else
// must be declared in the workflow or an env file.
var DefaultPassEnv = []string{"PATH", "HOME", "USER", "LANG", "TMPDIR", "CARGO_HOME", "RUSTUP_HOME"}

// LoadEnvFile reads a dotenv file and returns it as a map.
func LoadEnvFile(filename string) (map[string]string, error) {
	env, err := godotenv.Read(filename)
	if err != nil {
		return nil, fmt.Errorf("reading env file: %w", err)
	}
	if env == nil {
		env = make(map[string]string)
	}
	return env, nil
}

// MergeEnv performs a shallow merge of local over global.
// Local keys override global keys.
func MergeEnv(global, local map[string]string) map[string]string {
	merged := make(map[string]string, len(global)+len(local))
	maps.Copy(merged, global)
	maps.Copy(merged, local)
	return merged
}

// PassEnv copies the named variables that are set in the host environment.
func PassEnv(names []string) map[string]string {
	env := make(map[string]string, len(names))
	for _, name := range names {
		if v, ok := os.LookupEnv(name); ok {
			env[name] = v
		}
	}
	return env
}

// ColorEnv returns the colour flag a run hands to its steps. It is fixed at
// run start; steps cannot change it for each other.
func ColorEnv(noColor bool) map[string]string {
	if noColor {
		return map[string]string{"CARGO_TERM_COLOR": "never", "NO_COLOR": "1"}
	}
	return nil
}
