// Package explore drives the engines over a whole model: starting from the
// initial state it expands every reachable considered state breadth first and
// records each transition.
//
// Each level of the search is expanded by a pool of workers, each with its own
// ready-set cache. The coordinator records results in frontier order, so the
// recorded graph is the same for any worker count.
package explore
