// Package purchasevehicle implements the Purchase Vehicle use case.
//
// Purchasing creates the vehicle aggregate with its purchase price and type. The price must be
// positive and the vehicle id must not be taken. The CommandHandler runs the pure Decide function
// inside the aggregate runtime, which loads, decides, and appends with optimistic concurrency.
package purchasevehicle
