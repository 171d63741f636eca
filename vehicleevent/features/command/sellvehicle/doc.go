// Package sellvehicle implements the Sell Vehicle use case. A vehicle can be sold once.
package sellvehicle
