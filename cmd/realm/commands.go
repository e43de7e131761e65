package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/mathrealm/backend/internal/config"
	"github.com/mathrealm/backend/internal/problem"
	"github.com/mathrealm/backend/internal/progression"
	"github.com/mathrealm/backend/internal/tui"
	"github.com/spf13/cobra"
)

func newNewCmd(cfgPath *string) *cobra.Command {
	var (
		force  bool
		remote string
	)
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Create a new player",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			if cfg.Player.ID != "" && !force {
				return fmt.Errorf("player %s already exists (use --force to start over)", cfg.Player.ID)
			}
			cfg.Player.ID = uuid.NewString()
			cfg.Player.Key = uuid.NewString()
			if remote != "" {
				cfg.Player.RemoteURL = remote
			}
			if err := cfg.Save(*cfgPath); err != nil {
				return err
			}

			e, err := openEnv(*cfgPath)
			if err != nil {
				return err
			}
			s, err := progression.NewSession(e.defs, e.opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if err := e.persist(cmd.Context(), out, s); err != nil {
				return err
			}

			fmt.Fprintln(out, styleTitle.Render("✨ A new cultivator awakens"))
			fmt.Fprintln(out, labelValue("Player", cfg.Player.ID))
			fmt.Fprintln(out, labelValue("Config", *cfgPath))
			fmt.Fprintln(out, styleMuted.Render("Run `realm play` to begin."))
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Replace the existing player")
	cmd.Flags().StringVar(&remote, "remote", "", "Server URL for remote saves")
	return cmd
}

func newPlayCmd(open func() (*env, error)) *cobra.Command {
	var (
		concept  string
		autosave int
	)
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Answer problems in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			s, _, err := e.load(ctx)
			if err != nil {
				return err
			}

			var concepts []string
			if concept != "" {
				concepts = append(concepts, concept)
			}
			gen, err := problem.NewGenerator(nil, concepts...)
			if err != nil {
				return err
			}

			m := tui.New(s, gen, tui.Config{
				PlayerID:      e.cfg.Player.ID,
				Saver:         e.manager,
				AutosaveEvery: autosave,
			})
			final, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
			if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
				return err
			}
			if fm, ok := final.(tui.Model); ok {
				s = fm.Session()
			}
			return e.persist(context.WithoutCancel(ctx), cmd.OutOrStdout(), s)
		},
	}
	cmd.Flags().StringVar(&concept, "concept", "", "Only practise one concept (addition, subtraction, multiplication, division)")
	cmd.Flags().IntVar(&autosave, "autosave", 10, "Save every N answers (0 disables)")
	return cmd
}

func newStatusCmd(open func() (*env, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show realm, stats and inventory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open()
			if err != nil {
				return err
			}
			s, source, err := e.load(cmd.Context())
			if err != nil {
				return err
			}
			writeStatus(cmd.OutOrStdout(), s, string(source))
			return nil
		},
	}
}

func writeStatus(w io.Writer, s *progression.Session, source string) {
	st := s.Status()
	fmt.Fprintln(w, styleTitle.Render("✨ Cultivator Status")+" "+styleMuted.Render("("+source+")"))
	fmt.Fprintln(w, labelValue("Realm", realmName(s.Player.Realm)))
	if st.NextRealm != "" {
		fmt.Fprintln(w, labelValue("Exp", fmt.Sprintf("%d (%d to %s, %.0f%%)", st.Exp, st.NextThreshold-st.Exp, st.NextRealm, st.RealmProgress*100)))
	} else {
		fmt.Fprintln(w, labelValue("Exp", st.Exp))
	}
	fmt.Fprintln(w, labelValue("Health", fmt.Sprintf("%d/%d", st.Health, st.MaxHealth)))
	fmt.Fprintln(w, labelValue("Mana", fmt.Sprintf("%d/%d", st.Mana, st.MaxMana)))
	fmt.Fprintln(w, labelValue("Spirit stones", st.Currency))
	fmt.Fprintln(w, labelValue("Answers", fmt.Sprintf("%d (%d%% correct, best combo %d)", st.TotalAnswers, st.Accuracy, st.MaxCombo)))
	fmt.Fprintln(w, labelValue("Streak", fmt.Sprintf("%d days, %d check-ins", st.Streak.ConsecutiveDays, st.Streak.TotalCheckIns)))
	fmt.Fprintln(w, labelValue("Tasks", fmt.Sprintf("%d/%d", st.TasksDone, st.TasksTotal)))
	fmt.Fprintln(w, labelValue("Achievements", st.AchievementsDone))
	if len(st.MasteredConcepts) > 0 {
		fmt.Fprintln(w, labelValue("Mastered", fmt.Sprint(st.MasteredConcepts)))
	}

	if len(st.Equipped) > 0 {
		fmt.Fprintln(w, "")
		fmt.Fprintln(w, styleKey.Render("Equipped"))
		for _, slot := range progression.Slots {
			if id := st.Equipped[slot]; id != "" {
				fmt.Fprintf(w, "- %s: %s\n", slot, itemName(s, id))
			}
		}
	}
	if len(st.Collectibles) > 0 {
		fmt.Fprintln(w, "")
		fmt.Fprintln(w, styleKey.Render("Inventory"))
		ids := make([]string, 0, len(st.Collectibles))
		for id := range st.Collectibles {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			fmt.Fprintf(w, "- %s ×%d\n", itemName(s, id), st.Collectibles[id])
		}
	}
}

func itemName(s *progression.Session, id string) string {
	if it, ok := s.Items().Get(id); ok {
		return it.Name
	}
	return id
}

func newCheckInCmd(open func() (*env, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "checkin",
		Short: "Claim today's check-in reward",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			s, _, err := e.load(ctx)
			if err != nil {
				return err
			}
			out := s.CheckIn()
			w := cmd.OutOrStdout()
			if !out.Success {
				fmt.Fprintln(w, styleMuted.Render("Already checked in today. Come back tomorrow."))
				return nil
			}
			line := fmt.Sprintf("☀ Day %d of your streak", out.ConsecutiveDays)
			if out.Reward != nil {
				line += fmt.Sprintf(" (+%d exp)", out.Reward.Exp)
			}
			fmt.Fprintln(w, styleGood.Render(line))
			for _, l := range effectLines(out.Effects) {
				fmt.Fprintln(w, l)
			}
			return e.persist(ctx, w, s)
		},
	}
}

func newDiscoverCmd(open func() (*env, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "discover <treasure>",
		Short: "Open a treasure",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			s, _, err := e.load(ctx)
			if err != nil {
				return err
			}
			out, err := s.Discover(args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if !out.Success {
				fmt.Fprintln(w, styleMuted.Render("That treasure is already open."))
				return nil
			}
			fmt.Fprintln(w, styleGood.Render("🗝 Treasure opened: "+args[0]))
			for _, l := range effectLines(out.Effects) {
				fmt.Fprintln(w, l)
			}
			return e.persist(ctx, w, s)
		},
	}
}
