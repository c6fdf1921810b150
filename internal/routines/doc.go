// Package routines assembles autonomous routines and operator macros into task
// trees.
//
// Routines come from two places: the built-in catalog (Builtin) and an
// optional YAML/JSON routines file compiled with Compile. Every routine is a
// Builder so each activation gets a fresh tree.
package routines
