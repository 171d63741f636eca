// Package shell contains the imperative shell around the pure core: the aggregate runtime
// that loads, decides, and appends with optimistic concurrency; the codec between domain
// events and storable events; event metadata and request context; the optional state cache;
// and the shared observability vocabulary used by command and query handlers.
//
// In Hexagonal Architecture terminology these are the adapters that connect the domain
// with the event log and the outside world.
package shell
