package scorer

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

//go:embed default_weights.yml
var defaultWeights []byte

// ErrUnknownWeight is returned for weight keys the scorer does not know.
var ErrUnknownWeight = errors.New("unknown weight")

// ComplexityWeights weigh the SQL complexity metrics.
type ComplexityWeights struct {
	JoinCount        float64 `koanf:"join_count"        json:"join_count"        yaml:"join_count"`
	CTECount         float64 `koanf:"cte_count"         json:"cte_count"         yaml:"cte_count"`
	ConditionalCount float64 `koanf:"conditional_count" json:"conditional_count" yaml:"conditional_count"`
	WhereCount       float64 `koanf:"where_count"       json:"where_count"       yaml:"where_count"`
	SQLCharCount     float64 `koanf:"sql_char_count"    json:"sql_char_count"    yaml:"sql_char_count"`
}

// ImportanceWeights weigh how much of the project depends on a model.
type ImportanceWeights struct {
	DownstreamModelCount      float64 `koanf:"downstream_model_count"      json:"downstream_model_count"      yaml:"downstream_model_count"`
	DownstreamColumnCount     float64 `koanf:"downstream_column_count"     json:"downstream_column_count"     yaml:"downstream_column_count"`
	TransitiveDownstreamCount float64 `koanf:"transitive_downstream_count" json:"transitive_downstream_count" yaml:"transitive_downstream_count"`
}

// QualityWeights weigh test coverage, which lowers the score.
type QualityWeights struct {
	ColumnTestCoverage float64 `koanf:"column_test_coverage" json:"column_test_coverage" yaml:"column_test_coverage"`
	TestCount          float64 `koanf:"test_count"           json:"test_count"           yaml:"test_count"`
}

// Weights is the full weight configuration.
type Weights struct {
	SQLComplexity ComplexityWeights `koanf:"sql_complexity" json:"sql_complexity" yaml:"sql_complexity"`
	Importance    ImportanceWeights `koanf:"importance"     json:"importance"     yaml:"importance"`
	Quality       QualityWeights    `koanf:"quality"        json:"quality"        yaml:"quality"`
}

// DefaultWeights returns the built-in weights.
func DefaultWeights() *Weights {
	w, err := LoadWeights("")
	if err != nil {
		// the embedded file is part of the binary
		panic(fmt.Sprintf("invalid default weights: %v", err))
	}
	return w
}

// LoadWeights returns the built-in weights overlaid with the YAML file at
// path. Keys missing from the file keep their default; unknown keys are an
// error. An empty path returns the defaults.
func LoadWeights(path string) (*Weights, error) {
	k := koanf.New(".")

	defaults, err := yaml.Parser().Unmarshal(defaultWeights)
	if err != nil {
		return nil, fmt.Errorf("failed to parse default weights: %w", err)
	}
	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load default weights: %w", err)
	}
	known := make(map[string]bool)
	for _, key := range k.Keys() {
		known[key] = true
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load weights from %s: %w", path, err)
		}
		var unknown []string
		for _, key := range k.Keys() {
			if !known[key] {
				unknown = append(unknown, key)
			}
		}
		if len(unknown) > 0 {
			sort.Strings(unknown)
			return nil, fmt.Errorf("%w in %s: %v", ErrUnknownWeight, path, unknown)
		}
	}

	var w Weights
	err = k.UnmarshalWithConf("", &w, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &w,
			WeaklyTypedInput: true,
			ErrorUnused:      true,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("invalid weights: %w", err)
	}
	return &w, nil
}
