// Package legacy reconciles databases written by the previous flat
// conversion model with the current pair/target/artifact model. The
// bridge derives rows from the old conversion table and the indexer
// registers artifact files found on disk without a row; both passes
// are idempotent and never modify legacy data.
package legacy
