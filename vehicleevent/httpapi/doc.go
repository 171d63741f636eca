// Package httpapi exposes the commands, queries and live queries over HTTP with gin.
//
// Command responses carry the aggregate id and the committed version. Failures are answered with
// one error body shape whose errorCode is derived from the error category.
package httpapi
