package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/amirbrooks/tasker-board/internal/board"
	"github.com/amirbrooks/tasker-board/internal/cache"
	"github.com/amirbrooks/tasker-board/internal/store"
	"github.com/amirbrooks/tasker-board/internal/view"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	countStyle  = lipgloss.NewStyle().Faint(true)
	doneStyle   = lipgloss.NewStyle().Strikethrough(true).Faint(true)
	metaStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func (a *app) viewCommand() *cobra.Command {
	var (
		hidden    []string
		completed bool
		from, to  string
		days      int
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "view [family]",
		Short: "Render a view: " + familyNames(),
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 1 {
				return usageError("usage: tasker-board view [%s]", familyNames())
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.defaultViewConfig()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				fam, err := view.ParseFamily(args[0])
				if err != nil {
					return usageError("%v", err)
				}
				cfg.Family = fam
			}
			f := cmd.Flags()
			if f.Changed("hide-label") {
				cfg.HiddenLabels = hidden
			}
			if f.Changed("completed") {
				cfg.ShowCompleted = completed
			}
			if f.Changed("from") || f.Changed("to") || f.Changed("days") {
				w, err := parseWindow(from, to, days, cfg.Now, cfg.Location)
				if err != nil {
					return err
				}
				cfg.Window = w
			} else {
				a.plannerWindow(&cfg)
			}

			snap, err := a.ws.Fetch(cmd.Context(), store.KeyBoard)
			if err != nil {
				return err
			}
			groups, err := view.Project(snap, cfg)
			if err != nil {
				return usageError("%v", err)
			}
			if asJSON {
				return writeJSON(a.out, cfg, groups)
			}
			a.render(a.out, cfg, groups)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringSliceVar(&hidden, "hide-label", nil, "Label ids to leave out (repeatable)")
	f.BoolVar(&completed, "completed", false, "Include completed tasks")
	f.StringVar(&from, "from", "", "Planner window start (YYYY-MM-DD)")
	f.StringVar(&to, "to", "", "Planner window end (YYYY-MM-DD), inclusive")
	f.IntVar(&days, "days", 0, "Planner window of N days starting today")
	f.BoolVar(&asJSON, "json", false, "Write JSON to stdout")
	return cmd
}

func familyNames() string {
	names := make([]string, len(view.Families))
	for i, f := range view.Families {
		names[i] = string(f)
	}
	return strings.Join(names, "|")
}

func (a *app) defaultViewConfig() (view.Config, error) {
	loc, err := a.location()
	if err != nil {
		return view.Config{}, err
	}
	wsCfg := a.ws.Config()
	cfg := view.Config{
		Family:   view.Kanban,
		Now:      a.now(),
		Location: loc,
		Labels:   wsCfg.Labels,
		Scale:    wsCfg.StoryPointScale(),
	}
	if d := wsCfg.View; d != nil {
		if strings.TrimSpace(d.Family) != "" {
			fam, err := view.ParseFamily(d.Family)
			if err != nil {
				return view.Config{}, fmt.Errorf("%w: config view.family: %v", store.ErrInvalid, err)
			}
			cfg.Family = fam
		}
		cfg.HiddenLabels = d.HiddenLabels
		cfg.ShowCompleted = d.ShowCompleted
	}
	a.plannerWindow(&cfg)
	return cfg, nil
}

// plannerWindow applies the configured planner_days window to a planner
// view that has no window yet.
func (a *app) plannerWindow(cfg *view.Config) {
	d := a.ws.Config().View
	if d == nil || d.PlannerDays <= 0 || cfg.Family != view.Planner || !cfg.Window.Start.IsZero() {
		return
	}
	start := board.StartOfDay(cfg.Now, cfg.Location)
	cfg.Window = board.Window{Start: start, End: board.EndOfDay(start.AddDate(0, 0, d.PlannerDays-1), cfg.Location)}
}

func parseWindow(from, to string, days int, now time.Time, loc *time.Location) (board.Window, error) {
	var w board.Window
	if days < 0 {
		return w, usageError("--days must be positive")
	}
	parse := func(flag, s string) (time.Time, error) {
		t, err := time.ParseInLocation("2006-01-02", s, loc)
		if err != nil {
			return time.Time{}, usageError("--%s %q: want YYYY-MM-DD", flag, s)
		}
		return t, nil
	}
	switch {
	case from != "":
		start, err := parse("from", from)
		if err != nil {
			return w, err
		}
		w.Start = start
		if to != "" {
			end, err := parse("to", to)
			if err != nil {
				return w, err
			}
			w.End = board.EndOfDay(end, loc)
		} else if days > 0 {
			w.End = board.EndOfDay(start.AddDate(0, 0, days-1), loc)
		}
	case to != "":
		return w, usageError("--to needs --from")
	case days > 0:
		w.Start = board.StartOfDay(now, loc)
		w.End = board.EndOfDay(w.Start.AddDate(0, 0, days-1), loc)
	}
	return w, nil
}

// printDefaultView renders snap with the configured view defaults.
func (a *app) printDefaultView(snap *cache.Snapshot) error {
	cfg, err := a.defaultViewConfig()
	if err != nil {
		return err
	}
	groups, err := view.Project(snap, cfg)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out)
	a.render(a.out, cfg, groups)
	return nil
}

func (a *app) render(w io.Writer, cfg view.Config, groups view.OrderedGroups) {
	for i, g := range groups {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s %s\n", headerStyle.Render(g.Title), countStyle.Render(fmt.Sprintf("(%d)", len(g.Items))))
		for _, it := range g.Items {
			fmt.Fprintln(w, "  "+itemLine(it, cfg))
		}
	}
}

func itemLine(it *board.Item, cfg view.Config) string {
	mark := "[ ]"
	name := it.Name
	if it.Kind == board.KindNote {
		mark = " - "
	} else if it.CompleteIn(board.Window{}, cfg.Location) {
		mark = "[x]"
		name = doneStyle.Render(name)
	}
	if it.Pinned {
		mark += "*"
	} else {
		mark += " "
	}
	var meta []string
	if due, ok := it.DueIn(cfg.Location); ok {
		layout := "2006-01-02 15:04"
		if it.DateOnly {
			layout = "2006-01-02"
		}
		meta = append(meta, "due "+due.Format(layout))
	}
	if it.Recurring() {
		meta = append(meta, "↻")
	}
	if it.StoryPoints != nil {
		meta = append(meta, fmt.Sprintf("%d pts", *it.StoryPoints))
	}
	meta = append(meta, shortID(it.ID))
	return fmt.Sprintf("%s %s  %s", mark, name, metaStyle.Render(strings.Join(meta, " · ")))
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

type jsonItem struct {
	ID          string     `json:"id"`
	Kind        board.Kind `json:"kind"`
	Name        string     `json:"name"`
	Label       string     `json:"label,omitempty"`
	Rank        string     `json:"rank"`
	Pinned      bool       `json:"pinned,omitempty"`
	Due         *time.Time `json:"due,omitempty"`
	Completed   bool       `json:"completed"`
	StoryPoints *int       `json:"story_points,omitempty"`
}

type jsonGroup struct {
	Key   board.GroupKey `json:"key"`
	Title string         `json:"title"`
	Items []jsonItem     `json:"items"`
}

func writeJSON(w io.Writer, cfg view.Config, groups view.OrderedGroups) error {
	out := struct {
		Family view.Family `json:"family"`
		Groups []jsonGroup `json:"groups"`
	}{Family: cfg.Family, Groups: make([]jsonGroup, 0, len(groups))}
	for _, g := range groups {
		jg := jsonGroup{Key: g.Key, Title: g.Title, Items: make([]jsonItem, 0, len(g.Items))}
		for _, it := range g.Items {
			ji := jsonItem{
				ID:        it.ID,
				Kind:      it.Kind,
				Name:      it.Name,
				Label:     it.LabelID,
				Rank:      it.Rank,
				Pinned:    it.Pinned,
				Due:       it.Due,
				Completed: it.CompleteIn(board.Window{}, cfg.Location),
			}
			if it.StoryPoints != nil {
				p := int(*it.StoryPoints)
				ji.StoryPoints = &p
			}
			jg.Items = append(jg.Items, ji)
		}
		out.Groups = append(out.Groups, jg)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
