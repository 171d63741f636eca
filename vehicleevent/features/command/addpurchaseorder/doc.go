// Package addpurchaseorder implements the Add Purchase Order use case.
package addpurchaseorder
