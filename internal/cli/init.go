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

	"github.com/jeremyhahn/go-credstore/internal/password"
	"github.com/spf13/cobra"
)

var initPassword string

// initCmd provisions a master key for a user
var initCmd = &cobra.Command{
	Use:   "init <user-id>",
	Short: "Provision a master key for a user",
	Long: `Generate a master key for the user and wrap it under the given
lock-screen secret. When a legacy store holds key material for the
user it is recovered instead of generating a fresh key.`,
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

		state, err := rt.manager.GetWithPasswordChanged(user, pwd)
		if err != nil {
			return err
		}
		stateName(state)

		printer := NewPrinter(getConfig().OutputFormat, cmd.OutOrStdout())
		return printer.PrintSuccess(fmt.Sprintf("Master key provisioned for user %d", user))
	},
}

func init() {
	initCmd.Flags().StringVar(&initPassword, "password", "",
		"lock-screen secret (read from stdin when omitted)")
}
