// Package console talks to the person running the updater.
//
// It asks for an image path or URL while the locator awaits user input, lets
// the user pick a release in specific-version mode, and holds the window open
// before exit when attached to an interactive terminal.
package console
