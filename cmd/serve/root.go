package serve

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	cmdUtil "github.com/ValentinKolb/dStmt/cmd/util"
	"github.com/ValentinKolb/dStmt/lib/store"
	"github.com/ValentinKolb/dStmt/lib/store/lstore"
	"github.com/ValentinKolb/dStmt/lib/validator"
	"github.com/ValentinKolb/dStmt/rpc/common"
	"github.com/ValentinKolb/dStmt/rpc/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the dStmt server",
		Long:    `Start the dStmt server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is DSTMT_<flag> (e.g. DSTMT_MAX_TOTAL_STATEMENTS=1024)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(cmdUtil.InitConfig)

	// add flags
	key := "shard"
	ServeCmd.PersistentFlags().String(key, "100", cmdUtil.WrapString("Comma-separated list of shard ids to serve. Every shard is an independent statement store"))

	key = "engine"
	ServeCmd.PersistentFlags().String(key, common.EngineMemory, cmdUtil.WrapString("Database engine of the stores (memory, leveldb, badger, bolt)"))

	key = "data-dir"
	ServeCmd.PersistentFlags().String(key, "data", cmdUtil.WrapString("Directory of the databases, every shard gets its own sub directory (ignored for the memory engine)"))

	key = "max-total-statements"
	ServeCmd.PersistentFlags().Int(key, store.DefaultMaxTotalStatements, cmdUtil.WrapString("Maximum number of live statements per shard"))

	key = "max-total-size"
	ServeCmd.PersistentFlags().Int(key, store.DefaultMaxTotalSize, cmdUtil.WrapString("Maximum total data size of the live statements per shard (in bytes)"))

	key = "purge-after"
	ServeCmd.PersistentFlags().Uint64(key, store.DefaultPurgeAfterSec, cmdUtil.WrapString("Seconds an expired statement is remembered before it is purged. Expired statements can not be resubmitted from the network"))

	key = "maintenance-interval"
	ServeCmd.PersistentFlags().Duration(key, lstore.DefaultMaintenancePeriod, cmdUtil.WrapString("Interval of the background purge of expired statements (0 disables it)"))

	key = "quota-count"
	ServeCmd.PersistentFlags().Uint32(key, validator.DefaultQuotaCount, cmdUtil.WrapString("Maximum number of statements per account"))

	key = "quota-size"
	ServeCmd.PersistentFlags().Uint32(key, validator.DefaultQuotaSize, cmdUtil.WrapString("Maximum total data size per account (in bytes)"))

	key = "trusted-anchors"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Comma-separated list of hex encoded block hashes that on-chain proofs may refer to"))

	key = "allow-network"
	ServeCmd.PersistentFlags().Bool(key, true, cmdUtil.WrapString("Whether statements with the network source are accepted"))

	key = "keystore-dir"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Directory of encrypted key files used to decrypt posted statements (see dstmt keys)"))

	key = "keystore-pass"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Passphrase of the key files"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 5, cmdUtil.WrapString("Timeout of connection reads and writes in seconds (tcp and unix)"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:8080", cmdUtil.WrapString("The address on which the API will listen (e.g. localhost:8080, /tmp/dstmt.sock, ...)"))

	key = "workers-per-conn"
	ServeCmd.PersistentFlags().Int(key, 16, cmdUtil.WrapString("Maximum number of concurrent requests per connection (tcp and unix)"))

	key = "write-buffer"
	ServeCmd.PersistentFlags().Int(key, 512, cmdUtil.WrapString("The size of the socket write buffer (in KB, ignored for http)"))

	key = "read-buffer"
	ServeCmd.PersistentFlags().Int(key, 512, cmdUtil.WrapString("The size of the socket read buffer (in KB, ignored for http)"))

	key = "tcp-nodelay"
	ServeCmd.PersistentFlags().Bool(key, true, cmdUtil.WrapString("Whether to enable TCP_NODELAY (tcp only)"))

	key = "tcp-keepalive"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("The keepalive interval in seconds (tcp only)"))

	key = "tcp-linger"
	ServeCmd.PersistentFlags().Int(key, -1, cmdUtil.WrapString("The linger time in seconds, negative values keep the os default (tcp only)"))

	key = "metrics"
	ServeCmd.PersistentFlags().Bool(key, false, cmdUtil.WrapString("Expose prometheus metrics at /metrics (http only)"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// parse shards
	serveCmdConfig.Shards = []uint64{}
	for _, part := range strings.Split(viper.GetString("shard"), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		shardID, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid shard ID %s: %v", part, err)
		}
		serveCmdConfig.Shards = append(serveCmdConfig.Shards, shardID)
	}
	if len(serveCmdConfig.Shards) == 0 {
		return fmt.Errorf("at least one shard is required")
	}

	// parse trusted anchors
	serveCmdConfig.TrustedAnchors = nil
	if anchors := viper.GetString("trusted-anchors"); anchors != "" {
		for _, anchor := range strings.Split(anchors, ",") {
			serveCmdConfig.TrustedAnchors = append(serveCmdConfig.TrustedAnchors, strings.TrimSpace(anchor))
		}
	}

	// read the configuration from the command line flags and environment variables
	serveCmdConfig.Engine = viper.GetString("engine")
	serveCmdConfig.DataDir = viper.GetString("data-dir")
	serveCmdConfig.MaxTotalStatements = viper.GetInt("max-total-statements")
	serveCmdConfig.MaxTotalSize = viper.GetInt("max-total-size")
	serveCmdConfig.PurgeAfterSec = viper.GetUint64("purge-after")
	serveCmdConfig.MaintenanceInterval = viper.GetDuration("maintenance-interval")
	serveCmdConfig.QuotaCount = viper.GetUint32("quota-count")
	serveCmdConfig.QuotaSize = viper.GetUint32("quota-size")
	serveCmdConfig.AllowNetwork = viper.GetBool("allow-network")
	serveCmdConfig.KeystoreDir = viper.GetString("keystore-dir")
	serveCmdConfig.KeystorePass = viper.GetString("keystore-pass")
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.Metrics = viper.GetBool("metrics")
	serveCmdConfig.LogLevel = viper.GetString("log-level")
	serveCmdConfig.Transport = common.ServerTransportConfig{
		Endpoint:       viper.GetString("endpoint"),
		WorkersPerConn: viper.GetInt("workers-per-conn"),
		SocketConf: common.SocketConf{
			WriteBufferSize: viper.GetInt("write-buffer") * 1024,
			ReadBufferSize:  viper.GetInt("read-buffer") * 1024,
		},
		TCPConf: common.TCPConf{
			TCPNoDelay:      viper.GetBool("tcp-nodelay"),
			TCPKeepAliveSec: viper.GetInt("tcp-keepalive"),
			TCPLingerSec:    viper.GetInt("tcp-linger"),
		},
	}

	if serveCmdConfig.MaxTotalStatements <= 0 || serveCmdConfig.MaxTotalSize <= 0 {
		return fmt.Errorf("max-total-statements and max-total-size must be positive")
	}

	return nil
}

// run starts the dStmt server and closes it on SIGINT or SIGTERM
func run(_ *cobra.Command, _ []string) error {
	s, err := cmdUtil.GetSerializer()
	if err != nil {
		return err
	}

	t, err := cmdUtil.GetServerTransport()
	if err != nil {
		return err
	}

	serv := server.NewRPCServer(
		*serveCmdConfig,
		t,
		s,
	)

	// close the server (and flush the databases) on shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		if _, ok := <-sigCh; ok {
			server.Logger.Infof("shutting down")
			if err := serv.Close(); err != nil {
				server.Logger.Errorf("failed to close server: %v", err)
			}
		}
	}()

	if err := serv.Serve(); err != nil {
		_ = serv.Close()
		return err
	}
	return serv.Close()
}
