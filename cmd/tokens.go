package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/tunedeck/internal/config"
	"github.com/nextlevelbuilder/tunedeck/internal/secrets"
	"github.com/nextlevelbuilder/tunedeck/internal/token"
)

func tokensCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tokens",
		Short: "Manage issued companion credentials",
	}

	cmd.AddCommand(tokensListCmd())
	cmd.AddCommand(tokensRevokeCmd())
	cmd.AddCommand(tokensClearCmd())

	return cmd
}

// openTokenStore loads the credential table from the configured data dir.
// A running server holds its own copy; mutations made here take effect on
// its next restart.
func openTokenStore() *token.Store {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	blob, err := secrets.Open(cfg.DataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return token.NewStore(blob)
}

func tokensListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List issued credentials",
		Run: func(cmd *cobra.Command, args []string) {
			records := openTokenStore().Tokens()
			if len(records) == 0 {
				fmt.Println("No credentials issued.")
				return
			}
			for _, t := range records {
				issued := time.UnixMilli(t.CreatedAt).Format(time.RFC3339)
				fmt.Printf("%s  %s (%s v%s)  issued %s\n", t.ID, t.AppName, t.AppID, t.AppVersion, issued)
			}
		},
	}
}

func tokensRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke [id]",
		Short: "Revoke one credential by id",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			found, err := openTokenStore().Revoke(args[0])
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			if !found {
				fmt.Fprintf(os.Stderr, "No credential with id %s\n", args[0])
				os.Exit(1)
			}
			fmt.Println("Revoked.")
		},
	}
}

func tokensClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Revoke every issued credential",
		Run: func(cmd *cobra.Command, args []string) {
			if err := openTokenStore().Clear(); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			fmt.Println("All credentials revoked.")
		},
	}
}
