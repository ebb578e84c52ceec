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
	"github.com/spf13/cobra"
)

// stateCmd reports a user's lock state
var stateCmd = &cobra.Command{
	Use:   "state <user-id>",
	Short: "Report a user's lock state",
	Long: `Report whether the user is unlocked, locked, or uninitialized.

A fresh process has no cached master keys, so a provisioned user
always reports locked here.`,
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

		state, err := rt.manager.GetUserState(user)
		if err != nil {
			return err
		}

		printer := NewPrinter(getConfig().OutputFormat, cmd.OutOrStdout())
		return printer.PrintState(uint32(user), state)
	},
}
