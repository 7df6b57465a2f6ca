// Package channel maintains the live event channel to the scan server.
//
// The server speaks Socket.IO (protocol v5) over an Engine.IO v4 websocket
// transport. Only the text framing is implemented: open, ping/pong, namespace
// connect/disconnect, connect errors and events. Binary events and acks are
// ignored.
//
// A Manager runs one session at a time and reconnects forever with a
// bounded exponential backoff. Server events and the synthetic connect and
// disconnect transitions are delivered on a single channel, in arrival order.
// Events sent by the server while no session is established are lost.
package channel
