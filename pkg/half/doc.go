// Package half implements the two keyboard halves on top of the links.
//
// The primary half owns the link to the secondary and bridges the host
// link; the secondary reports its keys and applies what the primary
// sends. Both are driven by a framework.Loop: link inbound messages and
// local key events are posted to the loop and handled by controllers.
package half
