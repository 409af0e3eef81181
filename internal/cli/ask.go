package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/unfoldindia/unfold/internal/client"
)

var (
	askOwner string
	askURL   string
)

var askCmd = &cobra.Command{
	Use:   "ask <message>",
	Short: "Send a chat message to a running server as a user",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		token, err := mintToken(cfg.Auth.JWTSecret, cfg.Auth.Issuer, askOwner, time.Hour)
		if err != nil {
			return err
		}

		c := client.New(askURL, token)
		if !c.Healthy(cmd.Context()) {
			return fmt.Errorf("server not reachable")
		}
		reply, err := c.Chat(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		if reply.Status != "success" {
			return fmt.Errorf("%s", reply.Reply)
		}
		fmt.Fprintln(cmd.OutOrStdout(), reply.Reply)
		return nil
	},
}

func init() {
	askCmd.Flags().StringVar(&askOwner, "owner", "cli", "user to chat as")
	askCmd.Flags().StringVar(&askURL, "url", "", "server URL (default UNFOLD_URL or http://127.0.0.1:8000)")
}
