package store

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/amirbrooks/tasker-board/internal/board"
	"github.com/amirbrooks/tasker-board/internal/rank"
)

// ItemMeta is the YAML frontmatter of an item file.
type ItemMeta struct {
	Schema      int                `yaml:"schema"`
	Kind        string             `yaml:"kind"`
	ID          string             `yaml:"id"`
	Name        string             `yaml:"name"`
	Label       string             `yaml:"label,omitempty"`
	Rank        string             `yaml:"rank"`
	Pinned      bool               `yaml:"pinned,omitempty"`
	Due         string             `yaml:"due,omitempty"`
	Recurrence  string             `yaml:"recurrence,omitempty"`
	StoryPoints *int               `yaml:"story_points,omitempty"`
	Completions []board.Completion `yaml:"completions,omitempty"`
	Trashed     bool               `yaml:"trashed,omitempty"`
	CreatedAt   *time.Time         `yaml:"created_at"`
	UpdatedAt   *time.Time         `yaml:"updated_at"`
}

type record struct {
	ItemMeta
	Path string
	Body string
}

type AddItemInput struct {
	Kind        board.Kind
	Name        string
	Label       string
	Due         string
	Recurrence  string
	StoryPoints int
	Pinned      bool
	Body        string
}

type ListFilter struct {
	Label          string
	Kind           board.Kind
	Search         string
	IncludeTrashed bool
}

const (
	prefixTask = "tsk_"
	prefixNote = "nte_"
)

func (w *Workspace) AddItem(in AddItemInput) (*board.Item, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalid)
	}
	kind := in.Kind
	if kind == "" {
		kind = board.KindTask
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalid, kind)
	}
	labelID := ""
	if strings.TrimSpace(in.Label) != "" {
		l, ok := w.FindLabel(in.Label)
		if !ok {
			return nil, fmt.Errorf("%w: unknown label %q", ErrInvalid, in.Label)
		}
		labelID = l.ID
	}
	if kind == board.KindNote && (in.Due != "" || in.Recurrence != "" || in.StoryPoints != 0) {
		return nil, fmt.Errorf("%w: notes have no due date, recurrence or story points", ErrInvalid)
	}
	if in.Recurrence != "" {
		if _, err := parseRule(in.Recurrence); err != nil {
			return nil, err
		}
		if strings.TrimSpace(in.Due) == "" {
			return nil, fmt.Errorf("%w: a recurring task needs a due date", ErrInvalid)
		}
	}
	if in.StoryPoints != 0 && !w.onScale(in.StoryPoints) {
		return nil, fmt.Errorf("%w: %d is not on the story point scale %v", ErrInvalid, in.StoryPoints, w.cfg.Scale)
	}

	r, err := w.nextRankIn(labelID)
	if err != nil {
		return nil, err
	}

	now := timeNow()
	prefix := prefixTask
	if kind == board.KindNote {
		prefix = prefixNote
	}
	meta := ItemMeta{
		Schema:     1,
		Kind:       string(kind),
		ID:         prefix + newULID(),
		Name:       name,
		Label:      labelID,
		Rank:       r,
		Pinned:     in.Pinned,
		Due:        strings.TrimSpace(in.Due),
		Recurrence: strings.TrimSpace(in.Recurrence),
		CreatedAt:  &now,
		UpdatedAt:  &now,
	}
	if in.StoryPoints != 0 {
		p := in.StoryPoints
		meta.StoryPoints = &p
	}
	if _, _, err := parseDue(meta.Due); err != nil {
		return nil, err
	}
	rec := &record{ItemMeta: meta, Body: in.Body}
	rec.Path = filepath.Join(w.itemsDir(), fmt.Sprintf("%s__%s.md", meta.ID, slugify(name)))
	if err := writeItemFile(rec); err != nil {
		return nil, err
	}
	w.logger.Debug("item added", zap.String("id", meta.ID), zap.String("label", labelID), zap.String("rank", r))
	return rec.item()
}

func (w *Workspace) onScale(p int) bool {
	for _, s := range w.cfg.Scale {
		if s == p {
			return true
		}
	}
	return false
}

// nextRankIn returns a rank after every live item of the label group.
func (w *Workspace) nextRankIn(labelID string) (string, error) {
	recs, err := w.loadRecords(ListFilter{Label: labelOrUnlabeled(labelID)})
	if err != nil {
		return "", err
	}
	last := ""
	for _, r := range recs {
		if r.Rank > last {
			last = r.Rank
		}
	}
	if last == "" {
		return w.Assigner().First()
	}
	return w.Assigner().Next(last)
}

// Assigner returns the rank assigner configured for this workspace.
func (w *Workspace) Assigner() rank.Assigner {
	return rank.Assigner{MaxLen: w.cfg.RankMaxLength}
}

func labelOrUnlabeled(id string) string {
	if id == "" {
		return string(board.Unlabeled)
	}
	return id
}

// GetItemBySelector resolves a selector: an id or id prefix, then an exact title, then
// a title prefix.
func (w *Workspace) GetItemBySelector(selector string) (*board.Item, error) {
	rec, err := w.getRecord(selector)
	if err != nil {
		return nil, err
	}
	return rec.item()
}

func (w *Workspace) getRecord(selector string) (*record, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return nil, fmt.Errorf("%w: selector is required", ErrInvalid)
	}
	recs, err := w.loadRecords(ListFilter{IncludeTrashed: true})
	if err != nil {
		return nil, err
	}
	matchers := []struct {
		reason string
		match  func(r *record) bool
	}{
		{"id", func(r *record) bool {
			sel := strings.ToUpper(selector)
			return strings.HasPrefix(strings.ToUpper(r.ID), sel) ||
				strings.HasPrefix(strings.ToUpper(bareID(r.ID)), sel)
		}},
		{"title", func(r *record) bool {
			return strings.EqualFold(strings.TrimSpace(r.Name), selector) || slugify(r.Name) == slugify(selector)
		}},
		{"title prefix", func(r *record) bool {
			return strings.HasPrefix(strings.ToLower(r.Name), strings.ToLower(selector))
		}},
	}
	for _, m := range matchers {
		if m.reason == "id" && !isLikelyIDSelector(selector) {
			continue
		}
		var hits []*record
		for _, r := range recs {
			if m.match(r) {
				hits = append(hits, r)
			}
		}
		if len(hits) == 1 {
			return hits[0], nil
		}
		if len(hits) > 1 {
			conflict := &MatchConflictError{Reason: m.reason}
			for _, h := range hits {
				if it, err := h.item(); err == nil {
					conflict.Matches = append(conflict.Matches, it)
				}
			}
			return nil, conflict
		}
	}
	return nil, ErrNotFound
}

// bareID strips the kind prefix so selectors can use the ULID alone.
func bareID(id string) string {
	for _, p := range []string{prefixTask, prefixNote} {
		if strings.HasPrefix(id, p) {
			return id[len(p):]
		}
	}
	return id
}

func isLikelyIDSelector(selector string) bool {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return false
	}
	lower := strings.ToLower(selector)
	if strings.HasPrefix(lower, prefixTask) || strings.HasPrefix(lower, prefixNote) {
		return true
	}
	if len(selector) < 6 {
		return false
	}
	allowed := "0123456789ABCDEFGHJKMNPQRSTVWXYZ"
	hasDigit := false
	for _, r := range strings.ToUpper(selector) {
		if r >= '0' && r <= '9' {
			hasDigit = true
		}
		if !strings.ContainsRune(allowed, r) {
			return false
		}
	}
	return hasDigit
}

// ListItems returns items matching f, ordered by label then rank.
func (w *Workspace) ListItems(f ListFilter) ([]*board.Item, error) {
	recs, err := w.loadRecords(f)
	if err != nil {
		return nil, err
	}
	out := make([]*board.Item, 0, len(recs))
	for _, r := range recs {
		it, err := r.item()
		if err != nil {
			w.logger.Warn("skipping item", zap.String("path", r.Path), zap.Error(err))
			continue
		}
		out = append(out, it)
	}
	return out, nil
}

func (w *Workspace) loadRecords(f ListFilter) ([]*record, error) {
	entries, err := os.ReadDir(w.itemsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []*record
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".md") {
			continue
		}
		rec, err := readItemFile(filepath.Join(w.itemsDir(), e.Name()))
		if err != nil {
			w.logger.Warn("unreadable item file", zap.String("file", e.Name()), zap.Error(err))
			continue
		}
		if !f.IncludeTrashed && rec.Trashed {
			continue
		}
		if f.Label != "" && labelOrUnlabeled(rec.Label) != f.Label {
			continue
		}
		if f.Kind != "" && board.Kind(rec.Kind) != f.Kind {
			continue
		}
		if f.Search != "" {
			q := strings.ToLower(f.Search)
			if !strings.Contains(strings.ToLower(rec.Name), q) && !strings.Contains(strings.ToLower(rec.Body), q) {
				continue
			}
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Label != out[j].Label {
			return out[i].Label < out[j].Label
		}
		if out[i].Rank != out[j].Rank {
			return rank.Compare(out[i].Rank, out[j].Rank) < 0
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// update loads the item, lets fn change it, and writes it back.
func (w *Workspace) update(selector string, fn func(rec *record) error) (*board.Item, error) {
	rec, err := w.getRecord(selector)
	if err != nil {
		return nil, err
	}
	if err := fn(rec); err != nil {
		return nil, err
	}
	now := timeNow()
	rec.UpdatedAt = &now
	if err := writeItemFile(rec); err != nil {
		return nil, err
	}
	w.logger.Debug("item updated", zap.String("id", rec.ID), zap.String("rank", rec.Rank), zap.String("label", rec.Label))
	return rec.item()
}

// MoveItem puts the item at position (0-based) among the live items of its
// label group. Only the moved item's rank changes.
func (w *Workspace) MoveItem(selector string, position int) (*board.Item, error) {
	return w.update(selector, func(rec *record) error {
		group, err := w.loadRecords(ListFilter{Label: labelOrUnlabeled(rec.Label)})
		if err != nil {
			return err
		}
		ranks := make([]string, 0, len(group))
		for _, r := range group {
			if r.ID != rec.ID {
				ranks = append(ranks, r.Rank)
			}
		}
		next, err := w.Assigner().Move(ranks, position)
		if err != nil {
			return err
		}
		rec.Rank = next
		return nil
	})
}

// RelabelItem moves the item to the end of another label group. An empty
// label clears it.
func (w *Workspace) RelabelItem(selector, label string) (*board.Item, error) {
	labelID := ""
	if strings.TrimSpace(label) != "" && !strings.EqualFold(label, string(board.Unlabeled)) {
		l, ok := w.FindLabel(label)
		if !ok {
			return nil, fmt.Errorf("%w: unknown label %q", ErrInvalid, label)
		}
		labelID = l.ID
	}
	return w.update(selector, func(rec *record) error {
		if rec.Label == labelID {
			return nil
		}
		r, err := w.nextRankIn(labelID)
		if err != nil {
			return err
		}
		rec.Label = labelID
		rec.Rank = r
		return nil
	})
}

// CompleteItem records a completion. For a recurring task it completes the
// current occurrence and advances the due date to the next one.
func (w *Workspace) CompleteItem(selector string) (*board.Item, error) {
	loc := w.location()
	return w.update(selector, func(rec *record) error {
		if board.Kind(rec.Kind) != board.KindTask {
			return fmt.Errorf("%w: only tasks can be completed", ErrInvalid)
		}
		now := timeNow()
		due, dateOnly, err := parseDue(rec.Due)
		if err != nil {
			return err
		}
		occurrence := board.StartOfDay(now, loc)
		if due != nil {
			it := board.Item{Kind: board.KindTask, Due: due, DateOnly: dateOnly}
			d, _ := it.DueIn(loc)
			occurrence = board.StartOfDay(d, loc)
		}
		if rec.Recurrence == "" && len(rec.Completions) > 0 {
			return nil
		}
		rec.Completions = append(rec.Completions, board.Completion{At: now, Occurrence: occurrence})
		if rec.Recurrence != "" && due != nil {
			next, err := nextOccurrence(rec.Recurrence, *due)
			if err != nil {
				return err
			}
			rec.Due = formatDue(next, dateOnly)
		}
		return nil
	})
}

// ReopenItem drops every completion of a non-recurring task. For a recurring
// task it drops the latest completion and moves the due date back to that
// occurrence.
func (w *Workspace) ReopenItem(selector string) (*board.Item, error) {
	loc := w.location()
	return w.update(selector, func(rec *record) error {
		if rec.Recurrence == "" || len(rec.Completions) == 0 {
			rec.Completions = nil
			return nil
		}
		last := rec.Completions[len(rec.Completions)-1]
		rec.Completions = rec.Completions[:len(rec.Completions)-1]
		due, dateOnly, err := parseDue(rec.Due)
		if err != nil || due == nil {
			return err
		}
		it := board.Item{Kind: board.KindTask, Due: due, DateOnly: dateOnly}
		if back, ok := it.DueOn(last.Occurrence, loc); ok {
			rec.Due = formatDue(back, dateOnly)
		}
		return nil
	})
}

func (w *Workspace) PinItem(selector string, pinned bool) (*board.Item, error) {
	return w.update(selector, func(rec *record) error {
		rec.Pinned = pinned
		return nil
	})
}

func (w *Workspace) TrashItem(selector string) (*board.Item, error) {
	return w.update(selector, func(rec *record) error {
		rec.Trashed = true
		return nil
	})
}

// ItemPatch lists field changes for UpdateItem; nil fields are left alone and
// empty strings clear.
type ItemPatch struct {
	Name        *string
	Due         *string
	Recurrence  *string
	StoryPoints *int
	Body        *string
}

func (w *Workspace) UpdateItem(selector string, p ItemPatch) (*board.Item, error) {
	if p.Due != nil {
		if _, _, err := parseDue(*p.Due); err != nil {
			return nil, err
		}
	}
	if p.Recurrence != nil && strings.TrimSpace(*p.Recurrence) != "" {
		if _, err := parseRule(*p.Recurrence); err != nil {
			return nil, err
		}
	}
	if p.StoryPoints != nil && *p.StoryPoints != 0 && !w.onScale(*p.StoryPoints) {
		return nil, fmt.Errorf("%w: %d is not on the story point scale %v", ErrInvalid, *p.StoryPoints, w.cfg.Scale)
	}
	return w.update(selector, func(rec *record) error {
		note := board.Kind(rec.Kind) == board.KindNote
		if p.Name != nil {
			name := strings.TrimSpace(*p.Name)
			if name == "" {
				return fmt.Errorf("%w: name is required", ErrInvalid)
			}
			rec.Name = name
		}
		if p.Due != nil {
			if note && strings.TrimSpace(*p.Due) != "" {
				return fmt.Errorf("%w: notes have no due date", ErrInvalid)
			}
			rec.Due = strings.TrimSpace(*p.Due)
		}
		if p.Recurrence != nil {
			if note && strings.TrimSpace(*p.Recurrence) != "" {
				return fmt.Errorf("%w: notes do not recur", ErrInvalid)
			}
			rec.Recurrence = strings.TrimSpace(*p.Recurrence)
		}
		if rec.Recurrence != "" && rec.Due == "" {
			return fmt.Errorf("%w: a recurring task needs a due date", ErrInvalid)
		}
		if p.StoryPoints != nil {
			if note && *p.StoryPoints != 0 {
				return fmt.Errorf("%w: notes have no story points", ErrInvalid)
			}
			if *p.StoryPoints == 0 {
				rec.StoryPoints = nil
			} else {
				v := *p.StoryPoints
				rec.StoryPoints = &v
			}
		}
		if p.Body != nil {
			rec.Body = *p.Body
		}
		return nil
	})
}

func (r *record) item() (*board.Item, error) {
	due, dateOnly, err := parseDue(r.Due)
	if err != nil {
		return nil, err
	}
	kind := board.Kind(r.Kind)
	if kind == "" {
		kind = board.KindTask
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalid, r.Kind)
	}
	it := &board.Item{
		Kind:           kind,
		ID:             r.ID,
		Name:           r.Name,
		Due:            due,
		DateOnly:       dateOnly,
		Rank:           r.Rank,
		Pinned:         r.Pinned,
		Completions:    append([]board.Completion(nil), r.Completions...),
		RecurrenceRule: r.Recurrence,
		LabelID:        r.Label,
		Trashed:        r.Trashed,
	}
	if r.StoryPoints != nil {
		p := board.StoryPoint(*r.StoryPoints)
		it.StoryPoints = &p
	}
	return it, nil
}

// parseDue accepts YYYY-MM-DD (date-only) or RFC3339.
func parseDue(due string) (*time.Time, bool, error) {
	due = strings.TrimSpace(due)
	if due == "" {
		return nil, false, nil
	}
	if t, err := time.Parse("2006-01-02", due); err == nil {
		return &t, true, nil
	}
	if t, err := time.Parse(time.RFC3339, due); err == nil {
		return &t, false, nil
	}
	return nil, false, fmt.Errorf("%w: due %q is neither YYYY-MM-DD nor RFC3339", ErrInvalid, due)
}

func formatDue(t time.Time, dateOnly bool) string {
	if dateOnly {
		return t.Format("2006-01-02")
	}
	return t.Format(time.RFC3339)
}

func writeItemFile(r *record) error {
	yamlBytes, err := yaml.Marshal(&r.ItemMeta)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(yamlBytes)
	buf.WriteString("---\n\n")
	if strings.TrimSpace(r.Body) != "" {
		buf.WriteString(r.Body)
		if !strings.HasSuffix(r.Body, "\n") {
			buf.WriteString("\n")
		}
	}
	return writeFile(r.Path, buf.Bytes())
}

func readItemFile(path string) (*record, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	meta, body, err := parseFrontmatter(b)
	if err != nil {
		return nil, err
	}
	return &record{ItemMeta: *meta, Path: path, Body: body}, nil
}

func parseFrontmatter(b []byte) (*ItemMeta, string, error) {
	s := strings.ReplaceAll(string(b), "\r\n", "\n")
	if !strings.HasPrefix(s, "---\n") {
		return nil, "", fmt.Errorf("%w: missing frontmatter", ErrInvalid)
	}
	parts := strings.SplitN(s, "\n---\n", 2)
	if len(parts) != 2 {
		return nil, "", fmt.Errorf("%w: invalid frontmatter delimiters", ErrInvalid)
	}
	yamlPart := strings.TrimPrefix(parts[0], "---\n")
	body := strings.TrimPrefix(parts[1], "\n")
	var meta ItemMeta
	if err := yaml.Unmarshal([]byte(yamlPart), &meta); err != nil {
		return nil, "", err
	}
	if meta.Schema == 0 {
		meta.Schema = 1
	}
	if meta.ID == "" {
		return nil, "", fmt.Errorf("%w: missing id", ErrInvalid)
	}
	return &meta, body, nil
}
