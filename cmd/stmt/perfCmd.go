package stmt

import (
	"crypto/ecdsa"
	"encoding/csv"
	"fmt"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/dStmt/cmd/util"
	"github.com/ValentinKolb/dStmt/lib/statement"
	"github.com/ValentinKolb/dStmt/lib/store"
	"github.com/ValentinKolb/dStmt/rpc/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for dStmt servers",
		Long:    "",
		RunE:    run,
		PreRunE: processPerfConfig,
	}
	perfTopic            = statement.TopicFromString("__perf")
	perfLargeValueSizeKB = 32
	perfNumThreads       = 10
	perfAccounts         = 100
	perfSkip             = make([]string, 0)

	// latency percentiles reported per test
	perfPercentiles = []float64{0.5, 0.95, 0.99}
)

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. submit,get)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "large-value-size"
	perfTestCmd.Flags().Int(key, 32, util.WrapString("How large the data for the submit-large test should be (in KB, must fit the account quota of the server)"))
	key = "accounts"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different accounts to sign statements with"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfLargeValueSizeKB = viper.GetInt("large-value-size")
	perfAccounts = max(1, viper.GetInt("accounts"))
	perfNumThreads = viper.GetInt("threads")
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

// perfResult combines the go benchmark result with the latencies measured per operation
type perfResult struct {
	bench  testing.BenchmarkResult
	timer  gometrics.Timer
	errors gometrics.Counter
}

func run(_ *cobra.Command, _ []string) error {

	fmt.Println("Performance testing tool for dStmt servers")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(util.GetClientConfig().String())
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Println()

	fmt.Println("generating keys...")
	keys, err := newPerfKeys(perfAccounts)
	if err != nil {
		return err
	}

	fmt.Println("starting tests...")

	registry := gometrics.NewRegistry()
	defer registry.UnregisterAll()

	// Create results map
	results := make(map[string]perfResult)
	order := []string{"submit", "submit-large", "resubmit", "get", "broadcasts", "mixed"}

	// measure runs fn as a parallel benchmark and records the latency of every call
	measure := func(test string, prepare func(), fn func(counter int, timer gometrics.Timer) error) {
		res := perfResult{
			timer:  gometrics.GetOrRegisterTimer(test+".latency", registry),
			errors: gometrics.GetOrRegisterCounter(test+".errors", registry),
		}
		res.bench = testing.Benchmark(func(b *testing.B) {
			if shouldSkip(test) {
				return
			}
			if prepare != nil {
				prepare()
			}

			// cleanup
			b.Cleanup(func() { keys.removeAll(test) })

			b.SetParallelism(perfNumThreads)

			b.ResetTimer()

			b.RunParallel(func(pb *testing.PB) {
				counter := 0
				for pb.Next() {
					if err := fn(counter, res.timer); err != nil {
						res.errors.Inc(1)
						log.Printf("(%s) - %v\n", test, err)
					}
					counter++
				}
			})
		})
		results[test] = res
		printResult(test, res)
	}

	measure("submit", nil, func(counter int, timer gometrics.Timer) error {
		stmt, err := keys.statement(counter, []byte("test"))
		if err != nil {
			return err
		}
		return submitTimed(timer, stmt, statement.SourceLocal)
	})

	largeValue := make([]byte, perfLargeValueSizeKB*1024)
	measure("submit-large", nil, func(counter int, timer gometrics.Timer) error {
		stmt, err := keys.statement(counter, largeValue)
		if err != nil {
			return err
		}
		return submitTimed(timer, stmt, statement.SourceLocal)
	})

	// known statements from the network are answered without validation
	var known []*statement.Statement
	measure("resubmit", func() {
		known = keys.submitOnePerAccount("resubmit")
	}, func(counter int, timer gometrics.Timer) error {
		if len(known) == 0 {
			return fmt.Errorf("no statements")
		}
		stmt := known[counter%len(known)]
		start := time.Now()
		res := rpcStore.Submit(stmt, statement.SourceNetwork)
		timer.UpdateSince(start)
		if res.Kind != store.SubmitKnown {
			return fmt.Errorf("unexpected result: %s", res)
		}
		return nil
	})

	measure("get", func() {
		known = keys.submitOnePerAccount("get")
	}, func(counter int, timer gometrics.Timer) error {
		if len(known) == 0 {
			return fmt.Errorf("no statements")
		}
		hash := known[counter%len(known)].Hash()
		start := time.Now()
		stmt, err := rpcStore.Statement(hash)
		timer.UpdateSince(start)
		if err != nil {
			return err
		}
		if stmt == nil {
			return fmt.Errorf("statement %s not found", hash)
		}
		return nil
	})

	measure("broadcasts", func() {
		known = keys.submitOnePerAccount("broadcasts")
	}, func(counter int, timer gometrics.Timer) error {
		start := time.Now()
		_, err := rpcStore.Broadcasts([]statement.Topic{perfTopic})
		timer.UpdateSince(start)
		return err
	})

	measure("mixed", nil, func(counter int, timer gometrics.Timer) error {
		switch counter % 4 {
		case 0: // submit
			stmt, err := keys.statement(counter, []byte("test"))
			if err != nil {
				return err
			}
			return submitTimed(timer, stmt, statement.SourceLocal)
		case 1: // list
			start := time.Now()
			_, err := rpcStore.Statements()
			timer.UpdateSince(start)
			return err
		case 2: // broadcasts
			start := time.Now()
			_, err := rpcStore.Broadcasts([]statement.Topic{perfTopic})
			timer.UpdateSince(start)
			return err
		default: // remove the statements of one account
			start := time.Now()
			err := rpcStore.RemoveBy(keys.accounts[counter%len(keys.accounts)])
			timer.UpdateSince(start)
			return err
		}
	})

	// Write results to csv is specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, order, results, util.GetClientConfig()); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// perfKeys holds the signing keys of the accounts used by the benchmarks
type perfKeys struct {
	privs    []*ecdsa.PrivateKey
	accounts []statement.AccountID
	seq      atomic.Uint64
}

func newPerfKeys(n int) (*perfKeys, error) {
	k := &perfKeys{}
	for i := 0; i < n; i++ {
		priv, err := ethcrypto.GenerateKey()
		if err != nil {
			return nil, err
		}
		k.privs = append(k.privs, priv)
		k.accounts = append(k.accounts, statement.AccountIDFromPublicKey(&priv.PublicKey))
	}
	return k, nil
}

// statement signs a new unique statement with the key selected by counter
func (k *perfKeys) statement(counter int, data []byte) (*statement.Statement, error) {
	stmt := &statement.Statement{
		Topics: []statement.Topic{perfTopic},
		Data:   data,
	}
	// every statement gets a new priority so it is never known yet
	stmt.SetPriority(uint32(k.seq.Add(1)))
	if err := stmt.Sign(k.privs[counter%len(k.privs)]); err != nil {
		return nil, err
	}
	return stmt, nil
}

// submitOnePerAccount submits one statement per account and returns the accepted ones
func (k *perfKeys) submitOnePerAccount(test string) []*statement.Statement {
	var stmts []*statement.Statement
	for i := range k.privs {
		stmt, err := k.statement(i, []byte("test"))
		if err != nil {
			log.Printf("(%s) - error signing statement: %v\n", test, err)
			continue
		}
		if res := rpcStore.Submit(stmt, statement.SourceLocal); res.Kind != store.SubmitNew {
			log.Printf("(%s) - error submitting statement: %s\n", test, res)
			continue
		}
		stmts = append(stmts, stmt)
	}
	return stmts
}

// removeAll removes the statements of all benchmark accounts
func (k *perfKeys) removeAll(test string) {
	for _, account := range k.accounts {
		if err := rpcStore.RemoveBy(account); err != nil {
			log.Printf("(%s) - error removing statements: %v\n", test, err)
		}
	}
}

func submitTimed(timer gometrics.Timer, stmt *statement.Statement, source statement.Source) error {
	start := time.Now()
	res := rpcStore.Submit(stmt, source)
	timer.UpdateSince(start)
	if res.Kind != store.SubmitNew {
		return fmt.Errorf("unexpected result: %s", res)
	}
	return nil
}

func shouldSkip(test string) bool {
	// Check if the test is in the skip list
	for _, skip := range perfSkip {
		if test == skip {
			return true
		}
	}
	return false
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result perfResult) {
	if result.bench.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.bench.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)
	ps := result.timer.Percentiles(perfPercentiles)

	// Print the formatted result
	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\tp50=%s p95=%s p99=%s\terrors=%d\n",
		test, nsPerOp, time.Duration(nsPerOp), opsPerSec,
		time.Duration(ps[0]), time.Duration(ps[1]), time.Duration(ps[2]),
		result.errors.Count())
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, order []string, results map[string]perfResult, config *common.ClientConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "P50Ns", "P95Ns", "P99Ns", "Errors", "Skipped",
		"Endpoints", "TimeoutSec", "RetryCount", "ConnectionsPerEndpoint",
		"ShardID", "Serializer", "Transport",
		"Threads", "LargeValueSizeKB", "Accounts",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	// Write test results
	for _, test := range order {
		result, ok := results[test]
		if !ok {
			continue
		}

		var nsPerOp float64
		var opsPerSec float64
		var skipped string

		if result.bench.NsPerOp() == 0 {
			skipped = "true"
		} else {
			skipped = "false"
			nsPerOp = math.Max(float64(result.bench.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}
		ps := result.timer.Percentiles(perfPercentiles)

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			fmt.Sprintf("%.0f", ps[0]),
			fmt.Sprintf("%.0f", ps[1]),
			fmt.Sprintf("%.0f", ps[2]),
			strconv.FormatInt(result.errors.Count(), 10),
			skipped,
			strings.Join(config.Transport.Endpoints, ";"),
			strconv.Itoa(config.TimeoutSecond),
			strconv.Itoa(config.Transport.RetryCount),
			strconv.Itoa(config.Transport.ConnectionsPerEndpoint),
			strconv.FormatUint(util.GetShardID(), 10),
			viper.GetString("serializer"),
			viper.GetString("transport"),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfLargeValueSizeKB),
			strconv.Itoa(perfAccounts),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
