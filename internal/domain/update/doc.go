// Package update contains the core domain types of the patch workflow.
//
// It defines the Image signature used to recognise an unmodified input image,
// the Release and Asset descriptors read from a release feed, and the error
// taxonomy shared by every stage of a run.
package update
