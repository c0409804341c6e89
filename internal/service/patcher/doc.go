// Package patcher applies a binary delta to an image with an external diff tool.
//
// The tool is an opaque subprocess invoked as
// `<tool> -f -d -s <image> <delta> <output>`. Its exit status and stdout are
// observed but only the output file decides success: it must exist and be non-empty.
package patcher
