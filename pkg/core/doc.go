// Package core defines the shared data model of modaryn.
//
// This package contains:
//   - Project, the lifetime root of an analysis run
//   - Model and Column, with their column-level lineage edge lists
//   - ColumnReference, the edge payload
//   - SQLComplexity and ScoreStatistics, filled in by the scoring pass
//
// The Golden Rule: pkg/core imports ONLY the standard library.
// All other packages depend on core, not the reverse.
package core
