// Package settings owns the tunable console parameters: poll interval,
// zero-power alarm toggle and the tone shape.
//
// The Store loads them once from a kv.Store, merging the persisted JSON blob
// over built-in defaults key by key, and re-persists the whole object on
// every update. Broken or missing data never reaches the caller as an error;
// it is logged and the defaults apply.
package settings
