// Package snapembed keeps a third-party financing widget correctly mounted,
// validated, and gated inside a mutating e-commerce checkout page while an
// asynchronous remote financing application runs.
//
// The root package holds the shared error taxonomy. The moving parts live in
// subpackages:
//
//   - transaction builds a canonical, hashable snapshot of the order.
//   - preflight merges host-page state with snapshot validation into one gate.
//   - host abstracts over the two checkout flavors (reactive store vs. polling).
//   - render owns the widget mount lifecycle, recovery, and click gating.
//   - lifecycle tracks the remote application and gates final submission.
//   - checkout wires one Session per page around all of the above.
//
// Infrastructure subpackages (log, zap, backoff, scheduler, storage, config,
// appserver) carry the ambient concerns.
package snapembed
