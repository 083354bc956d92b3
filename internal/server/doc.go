// Package server implements the relay core: the connection Registry, the
// Broadcaster that fans one Event out to every registered connection, the
// per-connection session loop in Client, and the HTTP surface around them.
//
// A Hub is built once at startup from a Config and a QuestionPool and owns
// the shared state. Each upgraded connection runs a read pump that turns
// inbound actions into events and a write pump that drains a bounded
// outbound buffer. A connection that cannot accept an event is dropped
// rather than retried.
package server
