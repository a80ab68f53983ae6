// Package delegationgraph implements the delegation graph inside the
// participation context.
//
// The module owns the single-outgoing-edge delegation relation per
// (vote, user), validates new edges against self-delegation and cycles at
// write time, and resolves transitive delegation chains to the final voter
// with a hard traversal bound. Business rules live in application/domain
// layers; infrastructure stays behind ports and adapters.
package delegationgraph
