// Package updater runs one update of the patched image from start to finish.
//
// A run verifies the environment, locates an unmodified image, resolves the
// release to apply, downloads its delta, applies it with the diff tool and
// records the applied version. The transient delta file is removed on every
// exit path.
package updater
