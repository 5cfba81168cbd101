package main

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cory-johannsen/raid/internal/game/character"
	"github.com/cory-johannsen/raid/internal/game/dice"
	"github.com/cory-johannsen/raid/internal/scripting"
)

func newContentCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "content",
		Short: "Inspect the YAML and Lua content tree",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Load every template, ability, effect, AI domain and script and report problems",
		RunE: func(cmd *cobra.Command, _ []string) error {
			lib, err := character.LoadLibrary(a.cfg.Content.Dir)
			if err != nil {
				return err
			}
			if dir := a.cfg.Content.ScriptDir; dir != "" {
				mgr := scripting.NewManager(dice.NewLoggedRoller(dice.NewCryptoSource(), a.logger), a.logger)
				defer mgr.Close()
				if err := mgr.LoadGlobal(dir, a.cfg.Content.InstructionLimit); err != nil {
					return err
				}
				var missing []string
				for _, id := range sortedAbilityIDs(lib) {
					if s := lib.Abilities[id].Script; s != "" && !mgr.HasHook(scripting.GlobalScope, s) {
						missing = append(missing, fmt.Sprintf("ability %q: script %q", id, s))
					}
				}
				for _, id := range lib.Effects.IDs() {
					def, _ := lib.Effects.Get(id)
					for _, hook := range []string{def.LuaOnApply, def.LuaOnRemove, def.LuaOnTick} {
						if hook != "" && !mgr.HasHook(scripting.GlobalScope, hook) {
							missing = append(missing, fmt.Sprintf("effect %q: hook %q", id, hook))
						}
					}
				}
				for _, id := range lib.Domains.IDs() {
					d, _ := lib.Domains.Domain(id)
					for _, m := range d.Methods {
						if m.Precondition != "" && !mgr.HasHook(scripting.GlobalScope, m.Precondition) {
							missing = append(missing, fmt.Sprintf("ai domain %q method %q: precondition %q", id, m.ID, m.Precondition))
						}
					}
				}
				if len(missing) > 0 {
					return fmt.Errorf("undefined lua functions:\n  %s", strings.Join(missing, "\n  "))
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d templates, %d abilities, %d effects, %d ai domains\n",
				len(lib.Templates), len(lib.Abilities), lib.Effects.Len(), len(lib.Domains.IDs()))
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List templates with their abilities, talents and AI domain",
		RunE: func(cmd *cobra.Command, _ []string) error {
			lib, err := character.LoadLibrary(a.cfg.Content.Dir)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "template\tname\tabilities\ttalents\tai")
			for _, id := range lib.TemplateIDs() {
				t := lib.Templates[id]
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", t.ID, t.Name,
					strings.Join(t.Abilities, ","), strings.Join(t.Talents, ","), t.AI)
			}
			return tw.Flush()
		},
	})
	return cmd
}

func sortedAbilityIDs(lib *character.Library) []string {
	ids := make([]string, 0, len(lib.Abilities))
	for id := range lib.Abilities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
