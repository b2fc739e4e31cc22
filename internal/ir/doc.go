// Package ir provides the shared value types of the scheduler.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal. This keeps ir the foundational
// layer with no circular dependencies.
//
// Key design constraints:
//   - Resource names are compared after CanonicalPath (NFC, trimmed)
//   - Sets are exported as sorted slices so results are deterministic
//   - All JSON tags use snake_case
//   - Round numbers are logical (1-based), never wall-clock timestamps
package ir
