package stmt

import (
	"github.com/ValentinKolb/dStmt/cmd/util"
	"github.com/ValentinKolb/dStmt/rpc/client"
	"github.com/spf13/cobra"
)

var (
	rpcStore *client.RPCStore

	// StatementCommands represents the statement store command group
	StatementCommands = &cobra.Command{
		Use:               "stmt",
		Short:             "Perform statement store operations",
		PersistentPreRunE: setupStmtClient,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add common RPC flags to the stmt command
	util.SetupRPCClientFlags(StatementCommands)

	StatementCommands.PersistentFlags().Int("shard", 100, util.WrapString("ID of the shard to connect to"))

	// Add subcommands
	StatementCommands.AddCommand(submitCmd)
	StatementCommands.AddCommand(getCmd)
	StatementCommands.AddCommand(listCmd)
	StatementCommands.AddCommand(broadcastsCmd)
	StatementCommands.AddCommand(postedCmd)
	StatementCommands.AddCommand(removeCmd)
	StatementCommands.AddCommand(removeByCmd)
	StatementCommands.AddCommand(infoCmd)
	StatementCommands.AddCommand(perfTestCmd)
}

// setupStmtClient initializes the RPC store client
func setupStmtClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	// Get client configuration components
	config := util.GetClientConfig()
	shardId := util.GetShardID()

	// Get serializer and transport
	s, err := util.GetSerializer()
	if err != nil {
		return err
	}

	t, err := util.GetTransport()
	if err != nil {
		return err
	}

	// Create the statement store client
	rpcStore, err = client.NewRPCStore(
		shardId,
		*config,
		t,
		s,
	)

	return err
}
