package lineage

import (
	"fmt"
	"sort"
	"strings"
)

// Normalization describes how a dialect folds identifier case.
type Normalization int

const (
	// NormalizeLower folds unquoted identifiers to lower case; quoted
	// identifiers keep their spelling.
	NormalizeLower Normalization = iota
	// NormalizeUpper folds unquoted identifiers to upper case; quoted
	// identifiers keep their spelling.
	NormalizeUpper
	// NormalizeInsensitive treats every identifier, quoted or not, as case
	// insensitive.
	NormalizeInsensitive
)

// Dialect captures the lexical rules that differ between warehouses.
type Dialect struct {
	Name string
	// IdentifierQuotes lists the characters that open a quoted identifier.
	IdentifierQuotes string
	// DoubleQuotedStrings makes "..." a string literal instead of an identifier.
	DoubleQuotedStrings bool
	// SplitQuotedPaths splits a quoted table identifier on dots
	// (`project.dataset.table`).
	SplitQuotedPaths bool
	Normalization    Normalization
}

// Normalize returns the canonical spelling of an identifier.
func (d *Dialect) Normalize(name string, quoted bool) string {
	switch d.Normalization {
	case NormalizeInsensitive:
		return strings.ToLower(name)
	case NormalizeUpper:
		if quoted {
			return name
		}
		return strings.ToUpper(name)
	default:
		if quoted {
			return name
		}
		return strings.ToLower(name)
	}
}

// isIdentifierQuote reports whether ch opens a quoted identifier.
func (d *Dialect) isIdentifierQuote(ch byte) bool {
	if ch == '"' && d.DoubleQuotedStrings {
		return false
	}
	return strings.IndexByte(d.IdentifierQuotes, ch) >= 0
}

func (d *Dialect) String() string {
	return d.Name
}

// Built-in dialects.
var (
	ANSI = &Dialect{Name: "ansi", IdentifierQuotes: `"`}

	BigQuery = &Dialect{
		Name:                "bigquery",
		IdentifierQuotes:    "`",
		DoubleQuotedStrings: true,
		SplitQuotedPaths:    true,
		Normalization:       NormalizeInsensitive,
	}

	Snowflake = &Dialect{Name: "snowflake", IdentifierQuotes: `"`, Normalization: NormalizeUpper}

	Postgres = &Dialect{Name: "postgres", IdentifierQuotes: `"`}

	Redshift = &Dialect{Name: "redshift", IdentifierQuotes: `"`, Normalization: NormalizeInsensitive}

	DuckDB = &Dialect{Name: "duckdb", IdentifierQuotes: `"`, Normalization: NormalizeInsensitive}

	Databricks = &Dialect{
		Name:                "databricks",
		IdentifierQuotes:    "`",
		DoubleQuotedStrings: true,
		Normalization:       NormalizeInsensitive,
	}

	MySQL = &Dialect{
		Name:                "mysql",
		IdentifierQuotes:    "`",
		DoubleQuotedStrings: true,
		Normalization:       NormalizeInsensitive,
	}
)

var dialects = map[string]*Dialect{
	ANSI.Name:       ANSI,
	BigQuery.Name:   BigQuery,
	Snowflake.Name:  Snowflake,
	Postgres.Name:   Postgres,
	Redshift.Name:   Redshift,
	DuckDB.Name:     DuckDB,
	Databricks.Name: Databricks,
	MySQL.Name:      MySQL,
	"postgresql":    Postgres,
	"spark":         Databricks,
}

// LookupDialect returns the dialect registered under name (case-insensitive).
func LookupDialect(name string) (*Dialect, error) {
	d, ok := dialects[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDialect, name)
	}
	return d, nil
}

// DialectNames returns the canonical names of the built-in dialects.
func DialectNames() []string {
	seen := make(map[string]bool)
	names := make([]string, 0, len(dialects))
	for _, d := range dialects {
		if !seen[d.Name] {
			seen[d.Name] = true
			names = append(names, d.Name)
		}
	}
	sort.Strings(names)
	return names
}
