// Package tallyengine implements vote definitions, ballots and result
// computation inside the participation context.
//
// The module owns the vote catalog (options, choice bounds, auth mode,
// deadline), the one-ballot-per-voter upsert path, and the read-side tally
// that combines direct ballots with resolved delegation chains. It never
// mutates the delegation graph.
package tallyengine
