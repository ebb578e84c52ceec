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
	"fmt"

	"github.com/spf13/cobra"
)

var resetKeepNonSuperEncrypted bool

// resetCmd destroys a user's master key and the keys it wraps
var resetCmd = &cobra.Command{
	Use:   "reset <user-id>",
	Short: "Destroy a user's master key and super-encrypted keys",
	Long: `Destroy the user's master key. Keys wrapped by it become permanently
unrecoverable. With --keep-non-super-encrypted, keys that were never
bound to the lock-screen secret are preserved.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := parseUserID(args[0])
		if err != nil {
			return err
		}

		rt, err := buildRuntime(getConfig())
		if err != nil {
			return err
		}
		defer rt.Close()

		if err := rt.manager.ResetUser(user, resetKeepNonSuperEncrypted); err != nil {
			return err
		}

		printer := NewPrinter(getConfig().OutputFormat, cmd.OutOrStdout())
		return printer.PrintSuccess(fmt.Sprintf("User %d reset", user))
	},
}

func init() {
	resetCmd.Flags().BoolVar(&resetKeepNonSuperEncrypted, "keep-non-super-encrypted", false,
		"preserve keys that were never bound to the lock-screen secret")
}
