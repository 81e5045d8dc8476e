// Package schedule provides the single-threaded event loop the console runs
// on and cancellable timers whose callbacks execute on that loop.
//
// Loop serializes every state mutation: goroutines never touch console state
// directly, they Post closures. Scheduler hands out Tokens for repeating and
// one-shot timers; a callback only runs if its token is still live when the
// loop picks it up, so a Cancel issued on the loop is always final.
package schedule
