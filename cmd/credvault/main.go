// Command credvault is a personal credential vault: it imports saved browser
// logins, keeps them encrypted at rest, and checks them against known breaches.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container
)

var userID int64

var rootCmd = &cobra.Command{
	Use:   "credvault",
	Short: "Credential vault with browser import and breach checks",
	Long: `credvault keeps saved logins encrypted at rest under a passphrase-protected
vault key. It can import logins from Chromium-based browsers and check stored
passwords against the Pwned Passwords range API without revealing them.

Configuration is read from CREDVAULT_* environment variables.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().Int64VarP(&userID, "user", "u", 1, "owning user ID")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(revealCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(healthCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("✗")+" "+err.Error())
		os.Exit(1)
	}
}
