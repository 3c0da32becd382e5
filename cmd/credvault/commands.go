package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/credvault/internal/domain/model"
)

var importCmd = &cobra.Command{
	Use:   "import [browser]",
	Short: "Import saved logins from a browser (chrome, edge, brave, all)",
	Long: `Import copies the browser's login store to a temporary location, decrypts each
saved password with the browser's key and re-encrypts it under the vault key.
Logins already in the vault are skipped, so running import again is safe.
Without an argument every configured browser is imported.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		browser := model.BrowserAll
		if len(args) == 1 {
			parsed, err := model.ParseBrowser(args[0])
			if err != nil {
				return err
			}
			browser = parsed
		}

		ctx := cmd.Context()
		return withApp(ctx, func(a *app) error {
			if browser != model.BrowserAll {
				summary, err := a.imp.Import(ctx, browser, userID)
				if err != nil {
					return err
				}
				renderImportSummary(cmd.OutOrStdout(), summary)
				return nil
			}

			summaries, err := a.imp.ImportAll(ctx, userID)
			for _, s := range summaries {
				renderImportSummary(cmd.OutOrStdout(), s)
			}
			return err
		})
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored credentials without passwords",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		return withApp(ctx, func(a *app) error {
			creds, err := a.vault.List(ctx, userID)
			if err != nil {
				return err
			}
			return renderCredentials(cmd.OutOrStdout(), creds)
		})
	},
}

var revealCmd = &cobra.Command{
	Use:   "reveal <id>",
	Short: "Print a credential's decrypted password",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		return withApp(ctx, func(a *app) error {
			password, err := a.vault.Reveal(ctx, id)
			if err != nil {
				if isDecryptFailure(err) {
					return fmt.Errorf("credential %d: unable to decrypt", id)
				}
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), password)
			return nil
		})
	},
}

var checkCmd = &cobra.Command{
	Use:   "check [id]",
	Short: "Check passwords against known breaches",
	Long: `Check sends only the first five characters of each password's SHA-1 hash to
the breach API. With an ID one credential is checked; without, every credential
of the selected user is checked and the results are committed one at a time.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if len(args) == 0 {
			return withApp(ctx, func(a *app) error {
				summary, err := a.breach.CheckAll(ctx, userID)
				renderBreachSummary(cmd.OutOrStdout(), summary)
				return err
			})
		}

		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withApp(ctx, func(a *app) error {
			status, err := a.breach.CheckCredential(ctx, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d %s\n", id, statusLabel(status))
			return nil
		})
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a stored credential",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		return withApp(ctx, func(a *app) error {
			if err := a.vault.Delete(ctx, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s deleted credential %d\n", okMark(), id)
			return nil
		})
	},
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("credential ID must be a positive integer")
	}
	return id, nil
}
