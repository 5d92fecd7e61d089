// Package sf provides a generic single-flight mechanism for deduplicating
// concurrent function calls with the same key.
//
// Single-flight ensures that only one execution of a function is in-flight
// for a given key at a time. If multiple goroutines call [Singleflight.Do]
// with the same key concurrently, only the first call executes the function;
// the rest block until it completes and then receive the same result.
//
// The cache uses this on its miss path: when many readers miss on the same
// key at once, only one backing-store read is issued and every reader gets
// its result.
package sf
