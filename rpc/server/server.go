package server

import (
	"errors"
	"fmt"
	"io"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/ValentinKolb/dStmt/lib/db"
	"github.com/ValentinKolb/dStmt/lib/db/engines"
	"github.com/ValentinKolb/dStmt/lib/keystore"
	"github.com/ValentinKolb/dStmt/lib/statement"
	"github.com/ValentinKolb/dStmt/lib/store"
	"github.com/ValentinKolb/dStmt/lib/store/lstore"
	"github.com/ValentinKolb/dStmt/lib/validator"
	"github.com/ValentinKolb/dStmt/rpc/common"
	"github.com/ValentinKolb/dStmt/rpc/serializer"
	"github.com/ValentinKolb/dStmt/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("rpc")

// serverShard is a struct that represents a shard in the RPC server
// It contains the store it encapsulates and the adapter that handles requests for the store
type serverShard struct {
	Store   *lstore.Store
	Adapter IRPCServerAdapter
}

// RPCServer serves one local statement store per configured shard
type RPCServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	shards     *xsync.MapOf[uint64, serverShard]
	metrics    *metrics.Set
	keys       *keystore.MemoryKeyStore
	closeOnce  sync.Once
}

// NewRPCServer creates a new RPC server
// It takes a config, transport and serializer as parameters
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		http.NewHttpServerTransport(),
//		serializer.NewJSONSerializer(),
//	)
//	defer s.Close()
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	 }
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
) *RPCServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	Logger.Infof("Created RPC Server")
	Logger.Infof(config.String())

	// Create the RPC server
	return &RPCServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		shards:     xsync.NewMapOf[uint64, serverShard](),
		metrics:    metrics.NewSet(),
	}
}

// Serve starts the RPC server
// This function will also initialize the shards and start the transport layer.
// It blocks until the transport is closed.
func (s *RPCServer) Serve() error {
	if err := s.init(); err != nil {
		s.closeShards()
		return err
	}
	return s.transport.Listen(s.config)
}

// Close stops the transport and closes all stores
func (s *RPCServer) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.transport.Close()
		if cerr := s.closeShards(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	})
	return err
}

// Keys returns the decryption keys known to the server
func (s *RPCServer) Keys() *keystore.MemoryKeyStore {
	return s.keys
}

// WriteMetrics writes the process metrics and the metrics of all stores in the prometheus text format
func (s *RPCServer) WriteMetrics(w io.Writer) {
	metrics.WritePrometheus(w, true)
	s.metrics.WritePrometheus(w)
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (s *RPCServer) registerTransportHandler() {
	s.transport.RegisterHandler(func(shardId uint64, req []byte) []byte {
		var msg common.Message
		var respMsg common.Message

		// Get appropriate shard
		shard, ok := s.shards.Load(shardId)

		// Case shard does not exist -> error
		if !ok {
			respMsg = common.Message{
				MsgType: common.MsgTError,
				Err:     fmt.Sprintf("shard %d not found", shardId),
			}
		} else {
			// Decode the request
			err := s.serializer.Deserialize(req, &msg)

			if err != nil {
				respMsg = common.Message{
					MsgType: common.MsgTError,
					Err:     fmt.Sprintf("failed to deserialize request: %s", err),
				}
			} else {
				// Let the adapter handle the request
				start := time.Now()
				respMsg = *shard.Adapter.Handle(&msg, shard.Store)
				s.observeRequest(msg.MsgType, time.Since(start))
			}
		}

		// Return result
		val, err := s.serializer.Serialize(respMsg)
		if err != nil {
			Logger.Errorf("Failed to serialize response: %v", err)
			val, _ = s.serializer.Serialize(common.Message{
				MsgType: common.MsgTError,
				Err:     fmt.Sprintf("failed to serialize response: %s", err),
			})
		}
		return val
	})
}

// observeRequest counts a handled request and its duration per message type
func (s *RPCServer) observeRequest(msgType common.MessageType, took time.Duration) {
	s.metrics.GetOrCreateCounter(fmt.Sprintf(`statement_store_rpc_requests_total{type=%q}`, msgType.String())).Inc()
	s.metrics.GetOrCreateSummary(fmt.Sprintf(`statement_store_rpc_request_duration_seconds{type=%q}`, msgType.String())).Update(took.Seconds())
}

// engine maps the configured engine name to a database implementation
func (s *RPCServer) engine() (db.Implementation, error) {
	switch s.config.Engine {
	case common.EngineMemory, "":
		return db.ImplMaple, nil
	case common.EngineMaple:
		return db.ImplMaple, nil
	case common.EngineLevel:
		return db.ImplLevel, nil
	case common.EngineBadger:
		return db.ImplBadger, nil
	case common.EngineBolt:
		return db.ImplBolt, nil
	default:
		return "", fmt.Errorf("unknown engine %q", s.config.Engine)
	}
}

// newValidator creates the validator shared by all shards
func (s *RPCServer) newValidator() (store.Validator, error) {
	cfg := validator.DefaultConfig()
	if s.config.QuotaCount > 0 {
		cfg.DefaultQuota.MaxCount = s.config.QuotaCount
	}
	if s.config.QuotaSize > 0 {
		cfg.DefaultQuota.MaxSize = s.config.QuotaSize
	}
	cfg.AllowNetwork = s.config.AllowNetwork
	for _, anchor := range s.config.TrustedAnchors {
		block, err := statement.ParseBlockHash(anchor)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted anchor %q: %w", anchor, err)
		}
		cfg.TrustedAnchors = append(cfg.TrustedAnchors, block)
	}
	return validator.NewSignatureValidator(cfg), nil
}

func (s *RPCServer) init() error {

	// Init logger
	if err := common.InitLoggers(s.config.LogLevel); err != nil {
		Logger.Warningf("Using default log level: %v", err)
	}

	impl, err := s.engine()
	if err != nil {
		return err
	}

	v, err := s.newValidator()
	if err != nil {
		return err
	}

	// Decryption keys are shared by all shards
	if s.config.KeystoreDir != "" {
		s.keys, err = keystore.OpenDir(s.config.KeystoreDir, s.config.KeystorePass)
		if err != nil {
			return fmt.Errorf("failed to open keystore: %w", err)
		}
		Logger.Infof("Loaded %d decryption keys from %s", s.keys.Len(), s.config.KeystoreDir)
	} else {
		s.keys = keystore.NewMemoryKeyStore()
	}

	options := store.Options{
		MaxTotalStatements: s.config.MaxTotalStatements,
		MaxTotalSize:       s.config.MaxTotalSize,
		PurgeAfterSec:      s.config.PurgeAfterSec,
	}

	// CREATE SHARDS

	for _, shardId := range s.config.Shards {
		if _, exists := s.shards.Load(shardId); exists {
			return fmt.Errorf("duplicate shard %d", shardId)
		}

		backend, err := engines.Open(impl, s.config.ShardDataDir(shardId))
		if err != nil {
			return fmt.Errorf("failed to open database for shard %d: %w", shardId, err)
		}

		st, err := lstore.New(lstore.Config{
			Name:              fmt.Sprintf("shard-%d", shardId),
			Backend:           backend,
			Validator:         v,
			Keys:              s.keys,
			Options:           options,
			MaintenancePeriod: s.config.MaintenanceInterval,
			Metrics:           s.metrics,
		})
		if err != nil {
			backend.Close()
			return fmt.Errorf("failed to create store for shard %d: %w", shardId, err)
		}

		s.shards.Store(shardId, serverShard{
			Store:   st,
			Adapter: NewIStoreServerAdapter(),
		})
		Logger.Infof("created local store for shard %d", shardId)
	}

	Logger.Infof("dStmt setup completed successfully")

	// Configure the transport layer
	s.registerTransportHandler()
	if exporter, ok := s.transport.(transport.IMetricsExporter); ok && s.config.Metrics {
		exporter.RegisterMetrics(s.WriteMetrics)
	}

	return nil
}

// closeShards closes the stores of all shards
func (s *RPCServer) closeShards() error {
	var errs []error
	s.shards.Range(func(shardId uint64, shard serverShard) bool {
		if err := shard.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("shard %d: %w", shardId, err))
		}
		s.shards.Delete(shardId)
		return true
	})
	return errors.Join(errs...)
}
