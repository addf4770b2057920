// Package file provides the TOML-backed configuration loader.
//
// Settings live in a single config.toml. Missing files yield the
// defaults; present files are merged over the defaults and validated
// before use, so a typo in one field fails loudly at open time instead
// of misbehaving at runtime.
package file
