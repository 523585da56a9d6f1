// Package ir provides the value representation for device attribute data.
//
// Attribute reads, writes and command payloads all travel as ir.Value. The
// set is deliberately small and mirrors the shapes a mode cluster exposes:
// nullable unsigned integers, signed integers, booleans, strings, lists and
// structs. ir imports nothing internal.
//
// Key design constraints:
//   - NO float types (attribute data in scope is integral)
//   - Null is a first-class value (nullable attributes such as StartUpMode)
//   - Canonical JSON (RFC 8785) is the only serialization used for hashing
//     and golden traces
package ir
