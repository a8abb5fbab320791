// Package config loads modaryn CLI configuration from defaults, a
// modaryn.yaml file, MODARYN_* environment variables and command-line flags.
package config

// Default configuration values.
const (
	DefaultDialect     = "bigquery"
	DefaultFormat      = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultStateFile   = ".modaryn/state.db"
	DefaultServePort   = 8790
	DefaultApplyZScore = true
)

// ConfigFileNames are searched, in order, in the project directory.
var ConfigFileNames = []string{"modaryn.yaml", "modaryn.yml"}

// CheckConfig holds the thresholds of the check command. Zero disables a
// threshold.
type CheckConfig struct {
	MaxScore      float64 `koanf:"max_score"`
	MaxZScore     float64 `koanf:"max_zscore"`
	MaxRegression float64 `koanf:"max_regression"`
}

// ServeConfig holds configuration for the report server.
type ServeConfig struct {
	Port  int  `koanf:"port"`
	Watch bool `koanf:"watch"`
}

// Config holds all CLI configuration options.
type Config struct {
	ProjectDir   string      `koanf:"project_dir"`
	ManifestPath string      `koanf:"manifest_path"`
	Dialect      string      `koanf:"dialect"`
	Weights      string      `koanf:"weights"`
	Format       string      `koanf:"format"`
	Verbose      bool        `koanf:"verbose"`
	ApplyZScore  bool        `koanf:"apply_zscore"`
	StatePath    string      `koanf:"state_path"`
	Concurrency  int         `koanf:"concurrency"`
	Check        CheckConfig `koanf:"check"`
	Serve        ServeConfig `koanf:"serve"`
}

// defaults returns the lowest configuration layer.
func defaults() map[string]any {
	return map[string]any{
		"project_dir":          "",
		"manifest_path":        "",
		"dialect":              DefaultDialect,
		"weights":              "",
		"format":               DefaultFormat,
		"verbose":              false,
		"apply_zscore":         DefaultApplyZScore,
		"state_path":           DefaultStateFile,
		"concurrency":          0,
		"check.max_score":      0.0,
		"check.max_zscore":     0.0,
		"check.max_regression": 0.0,
		"serve.port":           DefaultServePort,
		"serve.watch":          false,
	}
}
