// Package connection is the entry point of the driver: the Manager owns the
// shared UDP transport, the registry of live charging station sessions and
// the table of callers waiting for a specific reply.
//
// Inbound datagrams travel one of two paths. During setup and discovery a
// caller registers a correlation key (response kind plus host, or just the
// kind for discovery, where any answering host counts) and blocks until the
// matching datagram arrives or the timeout fires. Everything else is routine
// telemetry and is routed to the session registered for the source host;
// datagrams from hosts nobody registered are logged and dropped.
//
// The registry keys sessions by host but identifies devices by serial. When
// a known serial shows up under a new address, after a DHCP lease change for
// example, Setup re-keys the existing session in place instead of creating a
// duplicate, so observers and accumulated data survive the move.
package connection
