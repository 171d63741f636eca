// Package lotsummary maintains the LotSummary read model, answers point and by-name queries,
// and streams live lot updates.
package lotsummary
