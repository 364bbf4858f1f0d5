// Package output orders and encodes report records so that the same input
// always renders to the same bytes.
//
// Records are sorted by column name with MultiFieldSort; a column is a json
// tag or, failing that, a Go field name. JSON is written by
// DeterministicEncode with sorted object keys, fractional numbers rounded to
// six decimals and null members left out. Empty lists stay in as [].
//
// CompareSnapshots checks two rendered reports for equality while ignoring
// VolatileFields such as the generation time.
package output
