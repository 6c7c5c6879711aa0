// Package platform holds the host-side collaborators the engine lifecycle
// depends on: per-target policy (deny-list, thread-pool hint), the support
// predicate, the encryption-key lookup and path resolution for extensions
// and the engine cache.
package platform
