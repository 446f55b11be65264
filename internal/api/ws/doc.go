/*
Package ws streams topic messages to WebSocket clients.

GET /stream?pattern=sensors/** upgrades the connection and attaches it to
every topic matching the doublestar pattern, existing or created later.
Each message arrives as

	{"type":"message","message":{"topic":"...","value":...,"trace_id":"...","at":"..."},"timestamp":...}

Clients may send {"type":"publish","topic":"...","value":...}, answered
with an ack or an error, and {"type":"ping"}, answered with a pong.
Closing the socket closes the watch.
*/
package ws
