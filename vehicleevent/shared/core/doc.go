// Package core contains the domain of the vehicle service: vehicles bought, moved between
// lots, and sold; lots with a name and a manager; and purchase orders.
//
// Everything here is pure. Domain events describe what happened, the Apply* functions fold
// events into aggregate state, and DecisionResult carries the outcome of a feature's Decide
// function. Nothing in this package touches the event log, the clock, or the network.
package core
