package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/mathrealm/backend/internal/progression"
	"github.com/spf13/cobra"
)

func newCodexCmd(open func() (*env, error)) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "codex",
		Short: "Browse realms, tasks, achievements, treasures and concepts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open()
			if err != nil {
				return err
			}
			s, _, err := e.load(cmd.Context())
			if err != nil {
				return err
			}
			md := codexMarkdown(s)
			if raw {
				fmt.Fprint(cmd.OutOrStdout(), md)
				return nil
			}
			r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
			if err != nil {
				return err
			}
			rendered, err := r.Render(md)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), rendered)
			return nil
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "Print markdown without rendering")
	return cmd
}

// codexMarkdown documents every goal with the player's progress. Hidden
// treasures are listed without their names until discovered.
func codexMarkdown(s *progression.Session) string {
	var b strings.Builder
	b.WriteString("# Codex\n\n## Realms\n\n| Realm | Exp | |\n|---|---:|---|\n")
	for _, def := range progression.Realms() {
		mark := ""
		switch {
		case def.Realm == s.Player.Realm:
			mark = "**you are here**"
		case def.Realm < s.Player.Realm:
			mark = "✓"
		}
		fmt.Fprintf(&b, "| %s | %d | %s |\n", def.Name, def.Threshold, mark)
	}

	goalSection(&b, "Tasks", s.Tasks.Goals(), s, false)
	goalSection(&b, "Achievements", s.Achievements.Goals(), s, false)
	goalSection(&b, "Treasures", s.Treasures.Goals(), s, true)
	goalSection(&b, "Concepts", s.Concepts.Goals(), s, false)
	return b.String()
}

func goalSection(b *strings.Builder, title string, goals []progression.Goal, s *progression.Session, hidden bool) {
	fmt.Fprintf(b, "\n## %s\n\n", title)
	if len(goals) == 0 {
		b.WriteString("_none_\n")
		return
	}
	for _, g := range goals {
		if hidden && !g.Completed {
			fmt.Fprintf(b, "- ☐ `%s` ???\n", g.ID)
			continue
		}
		box := "☐"
		if g.Completed {
			box = "☑"
		}
		fmt.Fprintf(b, "- %s **%s**", box, g.Name)
		if g.Description != "" {
			fmt.Fprintf(b, ": %s", g.Description)
		}
		if !g.Completed {
			if target := g.Target(); target > 1 {
				fmt.Fprintf(b, " (%s/%s)", trimFloat(g.Progress), trimFloat(target))
			}
		}
		if r := rewardText(g.Reward, s); r != "" {
			fmt.Fprintf(b, " · _%s_", r)
		}
		b.WriteString("\n")
	}
}

func rewardText(r progression.RewardSpec, s *progression.Session) string {
	var parts []string
	if r.Exp > 0 {
		parts = append(parts, fmt.Sprintf("%d exp", r.Exp))
	}
	for _, it := range r.Items {
		name := itemName(s, it.ItemID)
		if it.Quantity > 1 {
			name += fmt.Sprintf(" ×%d", it.Quantity)
		}
		parts = append(parts, name)
	}
	return strings.Join(parts, ", ")
}

func trimFloat(f float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.1f", f), "0"), ".")
}
