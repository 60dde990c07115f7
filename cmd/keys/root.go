package keys

import (
	"encoding/hex"
	"fmt"

	"github.com/ValentinKolb/dStmt/cmd/util"
	"github.com/ValentinKolb/dStmt/lib/keystore"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// KeyCommands represents the key management command group
	KeyCommands = &cobra.Command{
		Use:   "keys",
		Short: "Manage the encrypted key files used for signing and decryption",
		Long: `Manage the encrypted key files used for signing and decryption.
The same directory can be passed to dstmt serve --keystore-dir to decrypt posted statements.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return util.BindCommandFlags(cmd)
		},
	}
	newCmd = &cobra.Command{
		Use:   "new",
		Short: "Creates a new key file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, priv, err := keystore.Generate(viper.GetString("dir"), viper.GetString("pass"))
			if err != nil {
				return err
			}
			printKey(info, hex.EncodeToString(ethcrypto.CompressPubkey(&priv.PublicKey)))
			return nil
		},
	}
	listKeysCmd = &cobra.Command{
		Use:   "list",
		Short: "Lists all key files that can be decrypted with the passphrase",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			infos, privs, err := keystore.ListDir(viper.GetString("dir"), viper.GetString("pass"))
			if err != nil {
				return err
			}
			for i, info := range infos {
				printKey(info, hex.EncodeToString(ethcrypto.CompressPubkey(&privs[i].PublicKey)))
			}
			fmt.Printf("%d keys\n", len(infos))
			return nil
		},
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	KeyCommands.PersistentFlags().String("dir", "keys", util.WrapString("Directory of the key files"))
	KeyCommands.PersistentFlags().String("pass", "", util.WrapString("Passphrase of the key files"))

	KeyCommands.AddCommand(newCmd)
	KeyCommands.AddCommand(listKeysCmd)
}

// printKey prints everything needed to use a key with the stmt commands
func printKey(info keystore.KeyInfo, publicKey string) {
	fmt.Printf("file:           %s\n", info.Path)
	fmt.Printf("account:        %s\n", info.Account)
	fmt.Printf("decryption key: %s\n", info.DecryptionKey)
	fmt.Printf("public key:     %s\n", publicKey)
}
