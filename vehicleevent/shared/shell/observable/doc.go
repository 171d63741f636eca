// Package observable decorates core command and query handlers with metrics, tracing, and logging.
//
// The wrappers add no business behavior: they time the call, open a span, log start and outcome,
// and classify the outcome into the status values defined in package shell.
package observable
