// Package model loads simulation models written in CUE and checks them
// before they reach the engines.
//
// A model file has a single top-level "model" struct:
//
//	model: {
//		name: "pingpong"
//		events: ["ping", "pong"]
//		globals: {count: {int: 0}}
//		processes: [{name: "p", function: "p_body", sensitivity: ["ping"]}]
//		functions: {
//			p_body: {body: [
//				{op: "const", lit: {int: 5}},
//				{op: "const", lit: {unit: "ns"}},
//				{op: "wait", argc: 2},
//			]}
//		}
//		config: {stop_mode: "immediate"}
//	}
//
// Loading happens in three stages. Compile unifies the struct with a closed
// schema and decodes it into an ir.Model, Validate checks references and
// instruction operands, and AnalyzeCycles warns about recursive calls.
// Errors carry the CUE position of the offending value.
package model
