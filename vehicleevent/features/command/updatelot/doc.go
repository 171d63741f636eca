// Package updatelot implements the Update Lot use case: renaming a lot or changing its manager.
package updatelot
