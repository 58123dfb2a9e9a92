// Package engine runs a main module on a pool of workers. Each worker owns
// one executor on a goroutine locked to its OS thread and is driven by a
// single StartCommand; the Dispatcher records every result in the store,
// streams console output through the LogBroker and joins all workers before
// returning.
package engine
