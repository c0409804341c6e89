// Package verifier recognises unmodified input images.
//
// A file is a valid image when its first bytes equal the configured magic and
// the CRC-32 of its whole content equals the configured checksum. The magic is
// checked first so arbitrary large files are never hashed.
package verifier
