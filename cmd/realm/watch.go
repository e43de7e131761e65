package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mathrealm/backend/internal/ws"
	"github.com/spf13/cobra"
)

var errNoRemote = errors.New("no remote server configured, set player.remote_url or run `realm new --remote`")

func newWatchCmd(open func() (*env, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow live progress from the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open()
			if err != nil {
				return err
			}
			if e.cfg.Player.RemoteURL == "" {
				return errNoRemote
			}
			client, err := ws.NewClient(e.cfg.Player.RemoteURL, e.cfg.Player.ID, e.cfg.Player.Key, e.cfg.Server.AuthToken)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			w := cmd.OutOrStdout()
			fmt.Fprintln(w, styleMuted.Render("Watching "+e.cfg.Player.RemoteURL+" (Ctrl+C to stop)"))
			return client.Listen(ctx, func(ev ws.Event) {
				fmt.Fprintln(w, watchLine(ev))
			})
		},
	}
}

func watchLine(ev ws.Event) string {
	switch {
	case ev.GoalCompleted != nil:
		g := ev.GoalCompleted
		line := fmt.Sprintf("★ %s: %s", g.Tracker, g.Name)
		if g.Reward.Exp > 0 {
			line += fmt.Sprintf(" (+%d exp)", g.Reward.Exp)
		}
		return styleGold.Render(line)
	case ev.RealmUp != nil:
		return "⚡ Breakthrough! Reached " + realmName(ev.RealmUp.To)
	case ev.CheckIn != nil:
		return styleGood.Render(fmt.Sprintf("☀ Day %d of your streak", ev.CheckIn.ConsecutiveDays))
	}
	return styleMuted.Render(string(ev.Type))
}
