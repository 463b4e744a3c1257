// Package dispatch provides the execution contexts launched work runs on.
//
// A Dispatcher is a named place that accepts units of work. Serial runs its
// work one at a time in submission order and stands in for a UI or main
// loop. Pool runs work in parallel up to a fixed bound and is meant for
// blocking I/O. Inline runs work on the caller and exists for tests.
//
// None of the dispatchers keep goroutines alive while idle, so a process can
// create them freely without arranging a shutdown.
package dispatch
