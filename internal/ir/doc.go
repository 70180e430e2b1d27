// Package ir provides the data model shared by the choreography engine and
// its tooling.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal. This keeps the data model the
// foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Definitions are immutable once registered; identity is positional
//   - Step is a closed tagged union; the kind is resolved once, at compile
//     or construction time, never while a performance is running
//   - Sink commands are plain value records so recorders, stores and the
//     harness can share them without importing the engine
//   - All JSON tags use snake_case
package ir
