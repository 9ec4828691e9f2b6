// Package ir provides the canonical data representation and the program
// intermediate representation consumed by the abstract simulation engines.
//
// All other internal packages import ir; ir imports nothing internal. This
// keeps IR the foundational layer with no circular dependencies.
//
// The package has two halves:
//   - Canonical data (IRValue, MarshalCanonical, hashing). Every state key and
//     transition identifier is derived from RFC 8785 canonical JSON so that
//     equal states hash identically on every goroutine and every run.
//   - Program IR (Model, Function, Instr, Literal). A function body is an
//     ordered, resumable sequence of stack-machine instructions; evaluation can
//     stop at any index and resume later from a saved frame.
//
// Key design constraints:
//   - No float types anywhere; durations are integer amounts with a TimeUnit
//   - All JSON tags use snake_case (CUE decoding relies on them)
//   - Jump and branch targets are absolute instruction indices
package ir
