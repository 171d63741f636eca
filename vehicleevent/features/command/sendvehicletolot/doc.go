// Package sendvehicletolot implements the Send Vehicle to Lot use case.
//
// The lot is named by the caller and resolved to its id through the lot directory before anything
// is decided, so an unknown lot fails with core.ErrNotFound and appends nothing.
package sendvehicletolot
