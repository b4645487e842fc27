package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/amirbrooks/tasker-board/internal/board"
	"github.com/amirbrooks/tasker-board/internal/cache"
	"github.com/amirbrooks/tasker-board/internal/store"
)

// exactArgs is cobra.ExactArgs with a usage exit code.
func exactArgs(n int, usage string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return usageError("usage: tasker-board %s", usage)
		}
		return nil
	}
}

func (a *app) initCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the store root and default config",
		Args:  exactArgs(0, "init"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.ws.Init(); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Initialized", a.ws.Root)
			return nil
		},
	}
}

func (a *app) labelCommand() *cobra.Command {
	label := &cobra.Command{
		Use:   "label",
		Short: "Manage labels",
	}
	var color string
	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a label",
		Args:  exactArgs(1, `label add "<name>" [--color <hex>]`),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := a.ws.AddLabel(args[0], color)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Label %s (%s)\n", l.ID, l.Name)
			return nil
		},
	}
	add.Flags().StringVar(&color, "color", "", "Display color, e.g. #ff8800")

	ls := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List labels",
		Args:    exactArgs(0, "label ls"),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, l := range a.ws.ListLabels() {
				fmt.Fprintf(a.out, "%s\t%s\t%s\n", l.ID, l.Name, l.Color)
			}
			return nil
		},
	}
	label.AddCommand(add, ls)
	return label
}

func (a *app) addCommand() *cobra.Command {
	var in store.AddItemInput
	var note bool
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a task (or a note with --note)",
		Args:  exactArgs(1, `add "<title>" [--label <l>] [--due <date>] [--every <rrule>] [--points <n>] [--pin] [--note]`),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Name = args[0]
			in.Kind = board.KindTask
			if note {
				in.Kind = board.KindNote
			}
			s, err := a.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			it, err := a.ws.AddItem(in)
			if err != nil {
				return err
			}
			key := labelKey(it.LabelID)
			s.cache.Mutate(store.KeyBoard, cache.Create(it, cache.GroupHint{Key: key, Title: a.labelTitle(it.LabelID)}), cache.MutateOptions{})
			fmt.Fprintf(a.out, "Added %s %s\n", it.ID, it.Name)
			return a.printDefaultView(s.snapshot())
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.Label, "label", "", "Label id or name")
	f.StringVar(&in.Due, "due", "", "Due date (YYYY-MM-DD or RFC3339)")
	f.StringVar(&in.Recurrence, "every", "", "Recurrence rule, e.g. FREQ=WEEKLY;BYDAY=MO")
	f.IntVar(&in.StoryPoints, "points", 0, "Story points")
	f.BoolVar(&in.Pinned, "pin", false, "Pin the item")
	f.StringVar(&in.Body, "body", "", "Markdown body")
	f.BoolVar(&note, "note", false, "Add a note instead of a task")
	return cmd
}

func (a *app) editCommand() *cobra.Command {
	var name, due, every, body string
	var points int
	cmd := &cobra.Command{
		Use:   "edit <id-or-title>",
		Short: "Change an item's fields",
		Args:  exactArgs(1, `edit <id-or-title> [--name <t>] [--due <date>] [--every <rrule>] [--points <n>] [--body <md>]`),
		RunE: func(cmd *cobra.Command, args []string) error {
			var p store.ItemPatch
			f := cmd.Flags()
			if f.Changed("name") {
				p.Name = &name
			}
			if f.Changed("due") {
				p.Due = &due
			}
			if f.Changed("every") {
				p.Recurrence = &every
			}
			if f.Changed("points") {
				p.StoryPoints = &points
			}
			if f.Changed("body") {
				p.Body = &body
			}
			return a.mutate(cmd, args[0], "Updated", func(snap *cache.Snapshot, id string) (cache.Mutation, error) {
				it, err := itemFor(snap, id)
				if err != nil {
					return cache.Mutation{}, err
				}
				if p.Name != nil {
					it.Name = strings.TrimSpace(name)
				}
				if p.StoryPoints != nil {
					if points == 0 {
						it.StoryPoints = nil
					} else {
						sp := board.StoryPoint(points)
						it.StoryPoints = &sp
					}
				}
				return cache.Update(it), nil
			}, func(id string) (*board.Item, error) {
				return a.ws.UpdateItem(id, p)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&name, "name", "", "New title")
	f.StringVar(&due, "due", "", "Due date; empty clears")
	f.StringVar(&every, "every", "", "Recurrence rule; empty clears")
	f.IntVar(&points, "points", 0, "Story points; 0 clears")
	f.StringVar(&body, "body", "", "Markdown body")
	return cmd
}

func (a *app) moveCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "mv <id-or-title> <position>",
		Aliases: []string{"move"},
		Short:   "Move an item to a 0-based position within its label",
		Args:    exactArgs(2, "mv <id-or-title> <position>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			pos, err := strconv.Atoi(args[1])
			if err != nil || pos < 0 {
				return usageError("mv: position must be a non-negative integer, got %q", args[1])
			}
			return a.mutate(cmd, args[0], "Moved", func(snap *cache.Snapshot, id string) (cache.Mutation, error) {
				it, err := itemFor(snap, id)
				if err != nil {
					return cache.Mutation{}, err
				}
				r, err := a.ws.Assigner().Move(groupRanks(snap, labelKey(it.LabelID), id), pos)
				if err != nil {
					return cache.Mutation{}, err
				}
				return cache.Reorder(id, r), nil
			}, func(id string) (*board.Item, error) {
				return a.ws.MoveItem(id, pos)
			})
		},
	}
}

func (a *app) relabelCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "relabel <id-or-title> <label>",
		Short: "Move an item to the end of another label (\"unlabeled\" clears)",
		Args:  exactArgs(2, "relabel <id-or-title> <label>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := ""
			if !strings.EqualFold(args[1], string(board.Unlabeled)) {
				l, ok := a.ws.FindLabel(args[1])
				if !ok {
					return usageError("relabel: unknown label %q", args[1])
				}
				target = l.ID
			}
			return a.mutate(cmd, args[0], "Relabeled", func(snap *cache.Snapshot, id string) (cache.Mutation, error) {
				it, err := itemFor(snap, id)
				if err != nil {
					return cache.Mutation{}, err
				}
				if it.LabelID == target {
					return cache.Update(it), nil
				}
				ranks := groupRanks(snap, labelKey(target), id)
				r, err := a.ws.Assigner().Move(ranks, len(ranks))
				if err != nil {
					return cache.Mutation{}, err
				}
				it.LabelID = target
				it.Rank = r
				return cache.Update(it), nil
			}, func(id string) (*board.Item, error) {
				return a.ws.RelabelItem(id, target)
			})
		},
	}
}

func (a *app) doneCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "done <id-or-title>",
		Short: "Complete a task (the current occurrence, if recurring)",
		Args:  exactArgs(1, "done <id-or-title>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := a.location()
			if err != nil {
				return err
			}
			return a.mutate(cmd, args[0], "Completed", func(snap *cache.Snapshot, id string) (cache.Mutation, error) {
				it, err := itemFor(snap, id)
				if err != nil {
					return cache.Mutation{}, err
				}
				now := a.now()
				occ := board.StartOfDay(now, loc)
				if due, ok := it.DueIn(loc); ok {
					occ = board.StartOfDay(due, loc)
				}
				it.Completions = append(it.Completions, board.Completion{At: now, Occurrence: occ})
				return cache.Update(it), nil
			}, a.ws.CompleteItem)
		},
	}
}

func (a *app) reopenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reopen <id-or-title>",
		Short: "Undo the latest completion",
		Args:  exactArgs(1, "reopen <id-or-title>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := a.location()
			if err != nil {
				return err
			}
			return a.mutate(cmd, args[0], "Reopened", func(snap *cache.Snapshot, id string) (cache.Mutation, error) {
				it, err := itemFor(snap, id)
				if err != nil {
					return cache.Mutation{}, err
				}
				if it.Recurring() && len(it.Completions) > 0 {
					last := it.Completions[len(it.Completions)-1]
					it.Completions = it.Completions[:len(it.Completions)-1]
					if back, ok := it.DueOn(last.Occurrence, loc); ok {
						it.Due = &back
					}
				} else {
					it.Completions = nil
				}
				return cache.Update(it), nil
			}, a.ws.ReopenItem)
		},
	}
}

func (a *app) trashCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "trash <id-or-title>",
		Aliases: []string{"rm"},
		Short:   "Move an item to the trash",
		Args:    exactArgs(1, "trash <id-or-title>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.mutate(cmd, args[0], "Trashed", func(snap *cache.Snapshot, id string) (cache.Mutation, error) {
				return cache.Delete(id), nil
			}, a.ws.TrashItem)
		},
	}
}

func (a *app) pinCommand() *cobra.Command {
	var off bool
	cmd := &cobra.Command{
		Use:   "pin <id-or-title>",
		Short: "Pin an item (--off to unpin)",
		Args:  exactArgs(1, "pin <id-or-title> [--off]"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.mutate(cmd, args[0], "Pinned", func(snap *cache.Snapshot, id string) (cache.Mutation, error) {
				it, err := itemFor(snap, id)
				if err != nil {
					return cache.Mutation{}, err
				}
				it.Pinned = !off
				return cache.Update(it), nil
			}, func(id string) (*board.Item, error) {
				return a.ws.PinItem(id, !off)
			})
		},
	}
	cmd.Flags().BoolVar(&off, "off", false, "Unpin instead")
	return cmd
}

// mutate resolves selector, runs the change through a cache session and
// prints the default view.
func (a *app) mutate(cmd *cobra.Command, selector, verb string,
	predict func(snap *cache.Snapshot, id string) (cache.Mutation, error),
	persist func(id string) (*board.Item, error),
) error {
	target, err := a.ws.GetItemBySelector(selector)
	if err != nil {
		return err
	}
	s, err := a.openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	it, err := s.apply(change{
		predict: func(snap *cache.Snapshot) (cache.Mutation, error) { return predict(snap, target.ID) },
		persist: func() (*board.Item, error) { return persist(target.ID) },
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s %s %s\n", verb, it.ID, it.Name)
	return a.printDefaultView(s.snapshot())
}

func (a *app) labelTitle(id string) string {
	if id == "" {
		return "Unlabeled"
	}
	if l, ok := a.ws.FindLabel(id); ok {
		return l.Name
	}
	return id
}
