// Package adapters hides the differences between pgx.Pool, sql.DB, and sqlx.DB behind DBAdapter.
//
// Every adapter routes reads to the replica when one is configured and the context asks for eventual
// consistency, and writes always go to the primary. Unique violations on the aggregate version are
// reported in the same way by all three.
package adapters
