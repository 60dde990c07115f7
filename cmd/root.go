package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/dStmt/cmd/keys"
	"github.com/ValentinKolb/dStmt/cmd/serve"
	"github.com/ValentinKolb/dStmt/cmd/stmt"
	"github.com/ValentinKolb/dStmt/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.1.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "dstmt",
		Short: "bounded multi-tenant statement store",
		Long: fmt.Sprintf(`dStmt (v%s)

A statement store written in Go. It keeps small signed statements
of many accounts within per-account and global limits and serves
them by topic and decryption key.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dStmt",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dStmt v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(stmt.StatementCommands)
	RootCmd.AddCommand(keys.KeyCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "binary", util.WrapString("serializer to use (json, gob, binary)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "http", util.WrapString("transport to use (http, tcp, unix)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
