// Package tcp implements TCP socket-based transport for the statement store's
// RPC system. It provides concrete implementations of the base package's connector
// interfaces.
//
// Both connectors apply the socket settings of the config (no delay, keep alive,
// linger and buffer sizes) to every new connection. See the base package for the
// frame format and the connection handling.
//
// The default server buffer size is set to 512 KB. Use NewTCPServerTransportWithBuffer
// for other sizes.
package tcp
