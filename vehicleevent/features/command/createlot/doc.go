// Package createlot implements the Create Lot use case.
//
// A lot is a named place vehicles are sent to. Names are not unique; the lot id is.
package createlot
