package common

import (
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Socket settings (shared by client and server)
// --------------------------------------------------------------------------

// SocketConf holds the buffer sizes of stream sockets (tcp and unix)
type SocketConf struct {
	WriteBufferSize int
	ReadBufferSize  int
}

// TCPConf holds tcp specific socket settings
type TCPConf struct {
	TCPNoDelay      bool
	TCPKeepAliveSec int
	TCPLingerSec    int // negative values keep the os default
}

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

// Engine names accepted by the server. EngineMemory is the maple engine without snapshot.
const (
	EngineMemory = "memory"
	EngineMaple  = "maple"
	EngineLevel  = "leveldb"
	EngineBadger = "badger"
	EngineBolt   = "bolt"
)

// ServerTransportConfig holds the settings of the server transport
type ServerTransportConfig struct {
	Endpoint       string
	WorkersPerConn int
	SocketConf
	TCPConf
}

// ServerConfig holds all configuration parameters of a statement store node.
type ServerConfig struct {
	// Shards are the ids of the independent stores served by this node
	Shards []uint64

	// Storage
	Engine  string
	DataDir string

	// Global store limits
	MaxTotalStatements  int
	MaxTotalSize        int
	PurgeAfterSec       uint64
	MaintenanceInterval time.Duration

	// Validator and keys
	QuotaCount     uint32
	QuotaSize      uint32
	TrustedAnchors []string
	AllowNetwork   bool
	KeystoreDir    string
	KeystorePass   string

	// Timeout of connection reads and writes
	TimeoutSecond int64

	// Transport settings
	Transport ServerTransportConfig

	// Expose metrics (http transport only)
	Metrics bool

	// Logging configuration
	LogLevel string
}

// ShardDataDir returns the data directory of a shard, or "" for in-memory engines
func (c *ServerConfig) ShardDataDir(shardId uint64) string {
	if c.Engine == EngineMemory || c.DataDir == "" {
		return ""
	}
	return filepath.Join(c.DataDir, fmt.Sprintf("shard-%d", shardId))
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// RPC settings
	addSection("RPC Server")
	addField("Endpoint", c.Transport.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Workers per Conn", strconv.Itoa(c.Transport.WorkersPerConn))
	addField("Metrics", fmt.Sprintf("%t", c.Metrics))

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	// Storage
	addSection("Storage")
	addField("Engine", c.Engine)
	if c.Engine != EngineMemory {
		addField("Data Directory", c.DataDir)
	}

	// Limits
	addSection("Limits")
	addField("Max Statements", strconv.Itoa(c.MaxTotalStatements))
	addField("Max Total Size", fmt.Sprintf("%d bytes", c.MaxTotalSize))
	addField("Purge After", (time.Duration(c.PurgeAfterSec) * time.Second).String())
	addField("Maintenance Interval", c.MaintenanceInterval.String())

	// Validator
	addSection("Validator")
	addField("Default Quota", fmt.Sprintf("%d statements, %d bytes", c.QuotaCount, c.QuotaSize))
	addField("Network Submissions", fmt.Sprintf("%t", c.AllowNetwork))
	addField("Trusted Anchors", strconv.Itoa(len(c.TrustedAnchors)))
	if c.KeystoreDir != "" {
		addField("Keystore", c.KeystoreDir)
	}

	// Shards
	addSection("Shards")
	for _, shard := range c.Shards {
		dir := c.ShardDataDir(shard)
		if dir == "" {
			dir = "in memory"
		}
		addField(strconv.FormatUint(shard, 10), dir)
	}

	return sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

// ClientTransportConfig holds the settings of the client transport
type ClientTransportConfig struct {
	Endpoints              []string
	RetryCount             int
	ConnectionsPerEndpoint int
	SocketConf
	TCPConf
}

type ClientConfig struct {
	TimeoutSecond int
	Transport     ClientTransportConfig
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// General Client Settings
	addSection("Client Configuration")
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Retry Count", strconv.Itoa(c.Transport.RetryCount))
	addField("Connections Per Endpoint", strconv.Itoa(int(math.Max(1, float64(c.Transport.ConnectionsPerEndpoint)))))
	addField("TCP No Delay", fmt.Sprintf("%t", c.Transport.TCPNoDelay))

	// Endpoints
	addSection("Endpoints")
	for i, endpoint := range c.Transport.Endpoints {
		addField(strconv.Itoa(i), endpoint)
	}

	return sb.String()
}
