// Package envconfig reads the ANI_* environment variables.
//
// Every getter re-reads the environment, so tests can use t.Setenv.
package envconfig

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/born-ml/ani/internal/logutil"
	"github.com/born-ml/ani/internal/parallel"
)

// LogLevel returns the log level from ANI_DEBUG.
// ANI_DEBUG=1 (or true) selects debug, ANI_DEBUG=2 selects trace.
func LogLevel() slog.Level {
	level := slog.LevelInfo
	if s := Var("ANI_DEBUG"); s != "" {
		if b, _ := strconv.ParseBool(s); b {
			level = slog.LevelDebug
		} else if i, _ := strconv.ParseInt(s, 10, 64); i != 0 {
			level = slog.Level(i * -4)
		}
	}
	if level < logutil.LevelTrace {
		level = logutil.LevelTrace
	}
	return level
}

var (
	// NumWorkers caps the goroutines used by the kernels. 0 means one per CPU.
	NumWorkers = Uint("ANI_NUM_WORKERS", 0)
	// MinChunk is the smallest number of work units handed to one goroutine.
	MinChunk = Uint("ANI_MIN_CHUNK", uint(parallel.DefaultConfig().MinChunkSize))
	// Sequential disables parallel execution.
	Sequential = Bool("ANI_SEQUENTIAL")
	// Basis is the path to a JSON basis-parameter file. Empty means the built-in default.
	Basis = String("ANI_BASIS")
)

// Parallel returns the parallel config described by the environment.
func Parallel() parallel.Config {
	cfg := parallel.DefaultConfig()
	if n := NumWorkers(); n > 0 {
		cfg.NumWorkers = int(n)
	}
	if n := MinChunk(); n > 0 {
		cfg.MinChunkSize = int(n)
	}
	if Sequential() {
		cfg.Enabled = false
	}
	return cfg
}

// BoolWithDefault returns a getter for a boolean variable.
// Unparseable non-empty values count as true.
func BoolWithDefault(k string) func(defaultValue bool) bool {
	return func(defaultValue bool) bool {
		if s := Var(k); s != "" {
			b, err := strconv.ParseBool(s)
			if err != nil {
				return true
			}
			return b
		}
		return defaultValue
	}
}

// Bool returns a getter for a boolean variable that defaults to false.
func Bool(k string) func() bool {
	withDefault := BoolWithDefault(k)
	return func() bool {
		return withDefault(false)
	}
}

// String returns a getter for a string variable.
func String(s string) func() string {
	return func() string {
		return Var(s)
	}
}

// Uint returns a getter for an unsigned integer variable.
func Uint(key string, defaultValue uint) func() uint {
	return func() uint {
		if s := Var(key); s != "" {
			if n, err := strconv.ParseUint(s, 10, 64); err != nil {
				slog.Warn("invalid environment variable, using default", "key", key, "value", s, "default", defaultValue)
			} else {
				return uint(n)
			}
		}
		return defaultValue
	}
}

// EnvVar describes one variable for help output.
type EnvVar struct {
	Name        string
	Value       any
	Description string
}

// AsMap returns every variable with its current value.
func AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"ANI_DEBUG":       {"ANI_DEBUG", LogLevel(), "Show additional debug information (e.g. ANI_DEBUG=1)"},
		"ANI_NUM_WORKERS": {"ANI_NUM_WORKERS", NumWorkers(), fmt.Sprintf("Maximum kernel goroutines (default %d, the CPU count)", runtime.NumCPU())},
		"ANI_MIN_CHUNK":   {"ANI_MIN_CHUNK", MinChunk(), "Smallest number of atoms or molecules per goroutine"},
		"ANI_SEQUENTIAL":  {"ANI_SEQUENTIAL", Sequential(), "Run kernels on a single goroutine"},
		"ANI_BASIS":       {"ANI_BASIS", Basis(), "Path to a JSON basis-parameter file"},
	}
}

// Values returns every variable's current value as a string.
func Values() map[string]string {
	vals := make(map[string]string)
	for k, v := range AsMap() {
		vals[k] = fmt.Sprintf("%v", v.Value)
	}
	return vals
}

// Var returns an environment variable stripped of surrounding whitespace and quotes.
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}
