// Package fetcher streams remote resources to local files.
//
// Downloads are checked against the declared Content-Length; when the server
// omits it, only a configurable minimal size is enforced. Release assets that
// are zip or xz archives are unpacked into the delta path and the archive is
// removed afterwards.
package fetcher
