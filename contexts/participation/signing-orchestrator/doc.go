// Package signingorchestrator coordinates hard-auth ballot signing.
//
// It drives per-session state machines for the two signing methods: the
// synchronous ID-card digest/signature exchange and the asynchronous
// Mobile-ID challenge/poll flow. A successful session finalizes a signed
// container and casts a hard ballot through the tally engine's cast path.
// All waiting is caller-driven: the server holds no polling loop, only a
// session record keyed by an opaque token.
package signingorchestrator
