// Package sandbox implements the Sandbox Runtime: a single operation,
// Execute(state, code, limits) -> Outputs, run against a persistent
// in-memory interpreter state.
//
// Grounded on telnet2-opencode/go-memsh, which pairs mvdan.cc/sh/v3 (a pure
// Go POSIX/Bash interpreter) with spf13/afero (an in-memory filesystem) to
// give a shell session that cannot touch the host. This package adapts that
// pairing for statefulness across calls: unlike go-memsh's Shell.Run, which
// calls runner.Reset() on every invocation (discarding unexported
// variables), Execute rebuilds the interp.Runner for every call but seeds
// it from - and writes back to - a persisted variable set on State, so
// plain assignments (`x=7`) survive across turns in the same session.
package sandbox
