// Package unix implements a transport layer for the statement store's RPC system
// using Unix domain sockets, for clients running on the same machine as the node.
//
// The package only provides the unix specific connectors (listen, dial, socket
// buffer sizes). All other functionality comes from the base package.
//
// The default server buffer size is 64 KB.
package unix
