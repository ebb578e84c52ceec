// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-credstore.
//
// go-credstore is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/jeremyhahn/go-credstore/internal/password"
	"github.com/jeremyhahn/go-credstore/pkg/superkey"
	"github.com/spf13/cobra"
)

var unlockPassword string

// unlockCmd verifies a user's lock-screen secret against the stored
// master key
var unlockCmd = &cobra.Command{
	Use:   "unlock <user-id>",
	Short: "Unlock a user with their lock-screen secret",
	Long: `Decrypt the user's master key with the given lock-screen secret.

The unlocked state does not outlive the process; this command verifies
the secret and, when a legacy store is configured, migrates the user's
master key into the database.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := parseUserID(args[0])
		if err != nil {
			return err
		}

		secret, err := readSecret(cmd)
		if err != nil {
			return err
		}

		pwd, err := password.NewFromString(secret)
		if err != nil {
			return err
		}
		defer pwd.Clear()

		rt, err := buildRuntime(getConfig())
		if err != nil {
			return err
		}
		defer rt.Close()

		state, err := rt.manager.GetWithPasswordUnlock(user, pwd)
		if err != nil {
			return err
		}
		if _, ok := state.(*superkey.Uninitialized); ok {
			return fmt.Errorf("user %d has no master key", user)
		}
		stateName(state)

		printer := NewPrinter(getConfig().OutputFormat, cmd.OutOrStdout())
		return printer.PrintSuccess(fmt.Sprintf("User %d unlocked", user))
	},
}

func init() {
	unlockCmd.Flags().StringVar(&unlockPassword, "password", "",
		"lock-screen secret (read from stdin when omitted)")
}

// readSecret returns the --password flag value, falling back to one line
// from stdin.
func readSecret(cmd *cobra.Command) (string, error) {
	if v, _ := cmd.Flags().GetString("password"); v != "" {
		return v, nil
	}
	reader := bufio.NewReader(cmd.InOrStdin())
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read password from stdin: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
