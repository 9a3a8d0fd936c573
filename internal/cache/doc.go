// Package cache holds the last validated value of a synchronized resource.
//
// The package is internal to creditpulse. [Store] keeps exactly one [Entry]
// and replaces it wholesale on every write, so readers observe either the old
// entry or the new one and never a partially updated value.
package cache
