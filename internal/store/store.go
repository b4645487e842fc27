package store

import (
	"bytes"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/natefinch/atomic"
	"github.com/oklog/ulid/v2"
	"github.com/tailscale/hujson"
	"go.uber.org/zap"

	"github.com/amirbrooks/tasker-board/internal/board"
)

type randReader struct{}

func (randReader) Read(p []byte) (int, error) { return rand.Read(p) }

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	ErrInvalid  = errors.New("invalid")
	timeNow     = func() time.Time { return time.Now().UTC() }
)

// MatchConflictError provides details when a selector matches multiple items.
// It still satisfies errors.Is(err, ErrConflict).
type MatchConflictError struct {
	Reason  string
	Matches []*board.Item
}

func (e *MatchConflictError) Error() string {
	if e == nil || strings.TrimSpace(e.Reason) == "" {
		return "conflict"
	}
	return "conflict: " + e.Reason
}

func (e *MatchConflictError) Is(target error) bool {
	return target == ErrConflict
}

type Workspace struct {
	Root   string
	cfg    Config
	logger *zap.Logger
}

type Config struct {
	Schema        int           `json:"schema"`
	TimeZone      string        `json:"time_zone,omitempty"`
	Labels        []board.Label `json:"labels"`
	Scale         []int         `json:"story_point_scale,omitempty"`
	View          *ViewDefaults `json:"view,omitempty"`
	RankMaxLength int           `json:"rank_max_length,omitempty"`
}

type ViewDefaults struct {
	Family        string   `json:"family"`         // kanban|grid|planner|...
	HiddenLabels  []string `json:"hidden_labels"`  // label ids left out of every view
	ShowCompleted bool     `json:"show_completed"` // include completed tasks
	PlannerDays   int      `json:"planner_days"`
}

// Open opens a workspace rooted at root. It does not create files until Init is called.
func Open(root string, logger *zap.Logger) (*Workspace, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ws := &Workspace{Root: expandHome(root), logger: logger}
	if err := ws.loadOrDefaultConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return ws, nil
}

func (w *Workspace) Init() error {
	if err := os.MkdirAll(w.itemsDir(), 0o755); err != nil {
		return err
	}
	return w.ensureConfig()
}

func (w *Workspace) configPath() string {
	return filepath.Join(w.Root, "config.json")
}

func (w *Workspace) itemsDir() string {
	return filepath.Join(w.Root, "items")
}

func (w *Workspace) ensureConfig() error {
	if _, err := os.Stat(w.configPath()); err == nil {
		return w.loadOrDefaultConfig()
	}
	return w.SaveConfig(defaultConfig())
}

func defaultConfig() Config {
	return Config{
		Schema: 1,
		Labels: []board.Label{
			{ID: "todo", Name: "To Do"},
			{ID: "doing", Name: "Doing"},
			{ID: "waiting", Name: "Waiting"},
		},
		Scale: scaleInts(board.DefaultScale),
	}
}

// loadOrDefaultConfig reads config.json, which may carry comments and
// trailing commas.
func (w *Workspace) loadOrDefaultConfig() error {
	b, err := os.ReadFile(w.configPath())
	if err != nil {
		w.cfg = defaultConfig()
		return err
	}
	std, err := hujson.Standardize(b)
	if err != nil {
		return fmt.Errorf("%w: config.json: %v", ErrInvalid, err)
	}
	var cfg Config
	if err := json.Unmarshal(std, &cfg); err != nil {
		return fmt.Errorf("%w: config.json: %v", ErrInvalid, err)
	}
	w.cfg = normalizeConfig(cfg)
	return nil
}

func normalizeConfig(cfg Config) Config {
	if cfg.Schema == 0 {
		cfg.Schema = 1
	}
	if len(cfg.Scale) == 0 {
		cfg.Scale = scaleInts(board.DefaultScale)
	}
	return cfg
}

func (w *Workspace) Config() Config {
	return w.cfg
}

func (w *Workspace) SaveConfig(cfg Config) error {
	cfg = normalizeConfig(cfg)
	if _, err := cfg.Location(); err != nil {
		return err
	}
	w.cfg = cfg
	b, _ := json.MarshalIndent(cfg, "", "  ")
	return writeFile(w.configPath(), b)
}

// Location resolves the configured time zone, UTC when unset.
func (c Config) Location() (*time.Location, error) {
	if strings.TrimSpace(c.TimeZone) == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("%w: time zone %q: %v", ErrInvalid, c.TimeZone, err)
	}
	return loc, nil
}

// StoryPointScale returns the configured scale.
func (c Config) StoryPointScale() []board.StoryPoint {
	out := make([]board.StoryPoint, len(c.Scale))
	for i, p := range c.Scale {
		out[i] = board.StoryPoint(p)
	}
	return out
}

func scaleInts(scale []board.StoryPoint) []int {
	out := make([]int, len(scale))
	for i, p := range scale {
		out[i] = int(p)
	}
	return out
}

func (w *Workspace) location() *time.Location {
	loc, err := w.cfg.Location()
	if err != nil {
		w.logger.Warn("falling back to UTC", zap.Error(err))
		return time.UTC
	}
	return loc
}

// AddLabel registers a label; adding an existing name returns the existing label.
func (w *Workspace) AddLabel(name, color string) (board.Label, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return board.Label{}, fmt.Errorf("%w: label name is required", ErrInvalid)
	}
	id := slugify(name)
	if id == string(board.Unlabeled) {
		return board.Label{}, fmt.Errorf("%w: label id %q is reserved", ErrInvalid, id)
	}
	for _, l := range w.cfg.Labels {
		if l.ID == id {
			return l, nil
		}
	}
	cfg := w.cfg
	label := board.Label{ID: id, Name: name, Color: strings.TrimSpace(color)}
	cfg.Labels = append(append([]board.Label(nil), cfg.Labels...), label)
	if err := w.SaveConfig(cfg); err != nil {
		return board.Label{}, err
	}
	w.logger.Debug("label added", zap.String("id", id))
	return label, nil
}

func (w *Workspace) ListLabels() []board.Label {
	return append([]board.Label(nil), w.cfg.Labels...)
}

// FindLabel matches a label by id or by name.
func (w *Workspace) FindLabel(id string) (board.Label, bool) {
	id = strings.TrimSpace(strings.ToLower(id))
	for _, l := range w.cfg.Labels {
		if l.ID == id || slugify(l.Name) == id {
			return l, true
		}
	}
	return board.Label{}, false
}

func newULID() string {
	t := ulid.Timestamp(timeNow())
	entropy := ulid.Monotonic(randReader{}, 0)
	id, err := ulid.New(t, entropy)
	if err != nil {
		// fallback
		return fmt.Sprintf("%d", timeNow().UnixNano())
	}
	return strings.ToUpper(id.String())
}

func slugify(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return "x"
	}
	// Replace non-alnum with hyphen
	var b strings.Builder
	lastHyphen := false
	for _, r := range s {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if isAlnum {
			b.WriteRune(r)
			lastHyphen = false
		} else {
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		return "x"
	}
	return out
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~"+string(os.PathSeparator)) || path == "~" {
		home, _ := os.UserHomeDir()
		if home != "" {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return atomic.WriteFile(path, bytes.NewReader(data))
}
