// Package poller drives the recurring plant retrieval.
//
// The Poller owns the poll timer, the in-flight guard and the generation
// counter. Network calls run on their own goroutines and hand their results
// back to the loop, where responses issued under an older generation are
// dropped. Only the latest monitoring start/stop request is applied.
package poller
