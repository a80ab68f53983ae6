// Package containerbuilder assembles and serves signed ballot containers.
//
// It produces the human-readable document bundle a voter signs, stores the
// finalized signed container under an opaque ref, and mints narrowly-scoped
// download tokens so unauthenticated polling flows can fetch exactly one
// container for a bounded time.
package containerbuilder
