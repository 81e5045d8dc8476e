// Package kv implements the durable key-value storage behind the settings
// store.
//
// FileStore keeps one JSON document per key in a directory; RedisStore keeps
// them in Redis under a key prefix. Open picks the backend from a location
// string so the console configuration stays a single value.
package kv
