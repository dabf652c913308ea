// Package model provides the foundational types for loanflow.
//
// This package contains type definitions and the error taxonomy only. All
// other internal packages import model; model imports nothing internal.
//
// Key design constraints:
//   - Hashed inputs carry no float fields; money is whole currency units (int64)
//   - All JSON tags use snake_case
//   - Optional sub-documents are pointers so "absent" is distinguishable from zero
package model
