// Package transport owns the single UDP socket shared by everything that
// talks to KeContact charging stations.
//
// The protocol uses one fixed port (7090) for both directions and has no
// notion of a connection: commands go out as ASCII datagrams and stations
// answer, seconds later or never, on the same port. The transport therefore
// does exactly two things. It serializes all outbound sends behind one lock,
// holding the lock through the minimum inter-command spacing the station
// firmware needs between any two datagrams. And it runs one receive loop
// that re-arms the socket read before handing each datagram to the dispatch
// callback, so a slow dispatch never costs an inbound datagram.
//
// The transport carries no protocol knowledge. Classifying and routing
// inbound payloads is the job of the dispatch callback, see package
// connection.
package transport
