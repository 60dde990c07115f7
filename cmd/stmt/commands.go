package stmt

import (
	"crypto/ecdsa"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ValentinKolb/dStmt/cmd/util"
	"github.com/ValentinKolb/dStmt/lib/keystore"
	"github.com/ValentinKolb/dStmt/lib/statement"
	"github.com/ValentinKolb/dStmt/lib/store"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

var (
	submitCmd = &cobra.Command{
		Use:   "submit",
		Short: "Signs a new statement and submits it to the store",
		Long: `Signs a new statement and submits it to the store.
Without --key-file the statement is signed with a new throwaway key.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := submitOptionsFromFlags(cmd)
			if err != nil {
				return err
			}
			stmt, err := buildStatement(opts)
			if err != nil {
				return err
			}
			source, err := statement.ParseSource(opts.source)
			if err != nil {
				return err
			}

			res := rpcStore.Submit(stmt, source)
			account, _ := stmt.AccountID()
			fmt.Printf("hash=%s, account=%s, result=%s\n", stmt.Hash(), account, res)
			if res.Kind == store.SubmitInternalError {
				return res.Err
			}
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [hash]",
		Short: "Reads the statement with the given hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := statement.ParseHash(args[0])
			if err != nil {
				return err
			}
			stmt, err := rpcStore.Statement(hash)
			if err != nil {
				return err
			}
			if stmt == nil {
				fmt.Printf("hash=%s, found=false\n", hash)
				return nil
			}
			return printJSON(stmt)
		},
	}
	listCmd = &cobra.Command{
		Use:   "list",
		Short: "Lists the hashes of all statements",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			all, err := rpcStore.Statements()
			if err != nil {
				return err
			}
			for _, h := range all {
				account, _ := h.Statement.AccountID()
				fmt.Printf("%s account=%s topics=%d size=%d\n", h.Hash, account, len(h.Statement.Topics), h.Statement.DataLen())
			}
			fmt.Printf("%d statements\n", len(all))
			return nil
		},
	}
	broadcastsCmd = &cobra.Command{
		Use:   "broadcasts",
		Short: "Lists the data of all statements without a decryption key that match all topics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			topics, err := topicsFromFlags(cmd)
			if err != nil {
				return err
			}
			asStmt, _ := cmd.Flags().GetBool("stmt")

			var list [][]byte
			if asStmt {
				list, err = rpcStore.BroadcastsStmt(topics)
			} else {
				list, err = rpcStore.Broadcasts(topics)
			}
			if err != nil {
				return err
			}
			printList(list, asStmt)
			return nil
		},
	}
	postedCmd = &cobra.Command{
		Use:   "posted [decryption key]",
		Short: "Lists the data of all statements for a decryption key that match all topics",
		Long: `Lists the data of all statements for a decryption key that match all topics.
With --clear the server decrypts the data with the matching key of its keystore.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dest, err := statement.ParseDecryptionKey(args[0])
			if err != nil {
				return err
			}
			topics, err := topicsFromFlags(cmd)
			if err != nil {
				return err
			}
			asStmt, _ := cmd.Flags().GetBool("stmt")
			decrypt, _ := cmd.Flags().GetBool("clear")

			var list [][]byte
			switch {
			case decrypt && asStmt:
				list, err = rpcStore.PostedClearStmt(topics, dest)
			case decrypt:
				list, err = rpcStore.PostedClear(topics, dest)
			case asStmt:
				list, err = rpcStore.PostedStmt(topics, dest)
			default:
				list, err = rpcStore.Posted(topics, dest)
			}
			if err != nil {
				return err
			}
			// encrypted data is not printable
			printList(list, asStmt || !decrypt)
			return nil
		},
	}
	removeCmd = &cobra.Command{
		Use:   "remove [hash]",
		Short: "Removes the statement with the given hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := statement.ParseHash(args[0])
			if err != nil {
				return err
			}
			if err := rpcStore.Remove(hash); err != nil {
				return err
			}
			fmt.Println("removed successfully")
			return nil
		},
	}
	removeByCmd = &cobra.Command{
		Use:   "remove-by [account]",
		Short: "Removes all statements of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := statement.ParseAccountID(args[0])
			if err != nil {
				return err
			}
			if err := rpcStore.RemoveBy(account); err != nil {
				return err
			}
			fmt.Println("removed successfully")
			return nil
		},
	}
	infoCmd = &cobra.Command{
		Use:   "info",
		Short: "Prints statistics of the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := rpcStore.GetInfo()
			if err != nil {
				return err
			}
			return printJSON(info)
		},
	}
)

func init() {
	submitCmd.Flags().String("data", "", util.WrapString("Data of the statement"))
	submitCmd.Flags().StringSlice("topic", nil, util.WrapString("Topic of the statement, either hex encoded or a label that is hashed (repeatable, at most 4)"))
	submitCmd.Flags().String("channel", "", util.WrapString("Channel of the statement, either hex encoded or a label that is hashed"))
	submitCmd.Flags().Uint32("priority", 0, util.WrapString("Priority of the statement within its account"))
	submitCmd.Flags().String("key-file", "", util.WrapString("Encrypted key file used to sign the statement (see dstmt keys)"))
	submitCmd.Flags().String("pass", "", util.WrapString("Passphrase of the key file"))
	submitCmd.Flags().String("encrypt-to", "", util.WrapString("Hex encoded public key the data is encrypted for"))
	submitCmd.Flags().String("source", "local", util.WrapString("Source reported to the store (local, chain, network)"))

	for _, c := range []*cobra.Command{broadcastsCmd, postedCmd} {
		c.Flags().StringSlice("topic", nil, util.WrapString("Topic the statements must match, either hex encoded or a label that is hashed (repeatable, at most 4)"))
		c.Flags().Bool("stmt", false, util.WrapString("Print the hex encoded statements instead of their data"))
	}
	postedCmd.Flags().Bool("clear", false, util.WrapString("Let the server decrypt the data"))
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// submitOptions holds everything needed to build a statement on the command line
type submitOptions struct {
	data      string
	topics    []string
	channel   string
	priority  *uint32
	keyFile   string
	pass      string
	encryptTo string
	source    string
}

func submitOptionsFromFlags(cmd *cobra.Command) (submitOptions, error) {
	var opts submitOptions
	f := cmd.Flags()
	opts.data, _ = f.GetString("data")
	opts.topics, _ = f.GetStringSlice("topic")
	opts.channel, _ = f.GetString("channel")
	opts.keyFile, _ = f.GetString("key-file")
	opts.pass, _ = f.GetString("pass")
	opts.encryptTo, _ = f.GetString("encrypt-to")
	opts.source, _ = f.GetString("source")
	if f.Changed("priority") {
		p, err := f.GetUint32("priority")
		if err != nil {
			return opts, err
		}
		opts.priority = &p
	}
	return opts, nil
}

// buildStatement creates a signed statement from the options
func buildStatement(opts submitOptions) (*statement.Statement, error) {
	topics, err := util.ParseTopics(opts.topics)
	if err != nil {
		return nil, err
	}

	stmt := &statement.Statement{Topics: topics}
	if opts.priority != nil {
		stmt.SetPriority(*opts.priority)
	}
	if opts.channel != "" {
		c, err := statement.ParseChannel(opts.channel)
		if err != nil {
			c = statement.ChannelFromString(opts.channel)
		}
		stmt.SetChannel(c)
	}

	if opts.encryptTo != "" {
		pub, err := parsePublicKey(opts.encryptTo)
		if err != nil {
			return nil, err
		}
		if err := stmt.Encrypt([]byte(opts.data), pub); err != nil {
			return nil, fmt.Errorf("failed to encrypt data: %w", err)
		}
	} else if opts.data != "" {
		stmt.Data = []byte(opts.data)
	}

	priv, err := signingKey(opts.keyFile, opts.pass)
	if err != nil {
		return nil, err
	}
	if err := stmt.Sign(priv); err != nil {
		return nil, fmt.Errorf("failed to sign statement: %w", err)
	}
	return stmt, nil
}

// signingKey loads the key file or creates a throwaway key
func signingKey(keyFile, pass string) (*ecdsa.PrivateKey, error) {
	if keyFile == "" {
		return ethcrypto.GenerateKey()
	}
	return keystore.Load(keyFile, pass)
}

// parsePublicKey accepts a compressed or uncompressed hex encoded secp256k1 public key
func parsePublicKey(s string) (*ecdsa.PublicKey, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid public key %q: %w", s, err)
	}
	if len(b) == 33 {
		return ethcrypto.DecompressPubkey(b)
	}
	return ethcrypto.UnmarshalPubkey(b)
}

func topicsFromFlags(cmd *cobra.Command) ([]statement.Topic, error) {
	list, _ := cmd.Flags().GetStringSlice("topic")
	return util.ParseTopics(list)
}

func printList(list [][]byte, asHex bool) {
	for _, v := range list {
		if asHex {
			fmt.Println(hex.EncodeToString(v))
		} else {
			fmt.Printf("%s\n", v)
		}
	}
	fmt.Printf("%d results\n", len(list))
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
