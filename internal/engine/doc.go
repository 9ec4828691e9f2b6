// Package engine implements abstract simulation of SystemC-style models.
//
// The engine computes big steps over considered states. It never drives a
// search itself: an external driver picks a state and asks the engine for
// its successors.
//
// ARCHITECTURE:
//
// Process engine:
// MakeStep resumes one ready process and interprets its code until every
// path blocks. Branches on values the abstract domain cannot decide fork the
// state. Forked paths that meet again merge, composing their information.
//
// Scheduler engine:
// When no process is guaranteed ready, EndEvaluation runs the update phase
// (every requested channel's update function, in request order) and then
// advances the simulation: a delta cycle when anything waits for one, a time
// advance by the earliest timer otherwise, or nothing at quiescence.
// NotifyEvents and StopSimulation are called by the interpreter when the
// model executes notify and stop.
//
// Step Evaluation Flow:
// 1. The snapshot is thawed into a builder owned by the call
// 2. The crawler executes one instruction per small step
// 3. The fixpoint loop routes successors by classification
// 4. End-of-step states are frozen and returned with their info
//
// CRITICAL PATTERNS:
//
// Snapshots are immutable:
// Every operation takes frozen snapshots and returns new ones. Mutation is
// confined to builders that never escape the call.
//
// Deterministic results:
// Processes, events and channels are visited in sorted or request order.
// Channel updates chain in request order. Update functions are assumed not
// to touch overlapping state within one cycle, so the order should not
// change the result; nothing checks this.
// The same snapshot always yields the same transitions in the same order.
//
// Bounded big steps:
// Each big step polls the context once per small step and is limited by a
// step quota (WithMaxSteps).
package engine
