// Package locator finds a valid unmodified image to patch against.
//
// Candidates are tried in a fixed order: the path given on the command line,
// the path remembered from an earlier run, a recursive scan of the working
// tree, and finally the AwaitingUserInput step which asks for a local path or
// a download URL until one of them yields a valid image. The first accepted
// path is remembered in the state store.
package locator
