// internal/rundir/rundir.go
// Package rundir names and creates the per-trial run directories.
package rundir

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ErrCollision is returned when the directory for a new run already exists.
var ErrCollision = errors.New("run directory already exists")

// TimestampLayout is the second-granularity name format of timestamp ids (UTC).
const TimestampLayout = "2006-01-02_15-04-05"

const (
	resultText = "result.txt"
	resultJSON = "result.json"
)

// IDSource produces run directory names.
type IDSource interface {
	NextID() string
}

// TimestampIDs names runs by the wall-clock second they start in. Two runs in the same
// second get the same id; Layout.Create reports that as ErrCollision.
type TimestampIDs struct {
	Now func() time.Time
}

// NextID implements IDSource.
func (s TimestampIDs) NextID() string {
	return now(s.Now).UTC().Format(TimestampLayout)
}

// UUIDIDs names runs with random UUIDs.
type UUIDIDs struct{}

// NextID implements IDSource.
func (UUIDIDs) NextID() string {
	return uuid.NewString()
}

// StampedIDs joins the start second with a short random suffix, so names sort by time and
// never collide in practice.
type StampedIDs struct {
	Now func() time.Time
}

// NextID implements IDSource.
func (s StampedIDs) NextID() string {
	return fmt.Sprintf("%s_%s", now(s.Now).UTC().Format(TimestampLayout), uuid.NewString()[:8])
}

// CounterIDs hands out prefix-0001, prefix-0002, ...
type CounterIDs struct {
	Prefix string
	n      atomic.Int64
}

// NextID implements IDSource.
func (s *CounterIDs) NextID() string {
	return fmt.Sprintf("%s%04d", s.Prefix, s.n.Add(1))
}

// ResumeCounter returns a CounterIDs that continues after the highest prefix-NNNN entry
// under base. A missing base starts at 1.
func ResumeCounter(base, prefix string) *CounterIDs {
	ids := &CounterIDs{Prefix: prefix}
	entries, err := os.ReadDir(base)
	if err != nil {
		return ids
	}
	var highest int64
	for _, entry := range entries {
		rest, ok := strings.CutPrefix(entry.Name(), prefix)
		if !ok || rest == "" {
			continue
		}
		n, err := strconv.ParseInt(rest, 10, 64)
		if err != nil || n < 0 {
			continue
		}
		highest = max(highest, n)
	}
	ids.n.Store(highest)
	return ids
}

func now(fn func() time.Time) time.Time {
	if fn == nil {
		return time.Now()
	}
	return fn()
}

// SourceFor maps a configuration value to an id source for runs under base. Unknown names
// select StampedIDs.
func SourceFor(name, base string) IDSource {
	switch name {
	case "timestamp":
		return TimestampIDs{}
	case "uuid":
		return UUIDIDs{}
	case "counter":
		return ResumeCounter(base, "run-")
	default:
		return StampedIDs{}
	}
}

// Layout places run directories under Base.
type Layout struct {
	Base string
	IDs  IDSource
}

// Run is the set of paths a single trial writes.
type Run struct {
	ID             string
	Dir            string
	WeightsPath    string
	ConfigPath     string
	ResultPath     string
	ResultJSONPath string
}

// Create makes a fresh directory for a run. An existing directory is never reused.
func (l Layout) Create(weightsName, configName string) (Run, error) {
	ids := l.IDs
	if ids == nil {
		ids = StampedIDs{}
	}
	if err := os.MkdirAll(l.Base, 0o755); err != nil {
		return Run{}, fmt.Errorf("error creating runs directory: %w", err)
	}

	id := ids.NextID()
	dir := filepath.Join(l.Base, id)
	if err := os.Mkdir(dir, 0o755); err != nil {
		if errors.Is(err, os.ErrExist) {
			return Run{}, fmt.Errorf("%w: %s", ErrCollision, dir)
		}
		return Run{}, fmt.Errorf("error creating run directory: %w", err)
	}
	return paths(id, dir, weightsName, configName), nil
}

func paths(id, dir, weightsName, configName string) Run {
	return Run{
		ID:             id,
		Dir:            dir,
		WeightsPath:    filepath.Join(dir, weightsName),
		ConfigPath:     filepath.Join(dir, configName),
		ResultPath:     filepath.Join(dir, resultText),
		ResultJSONPath: filepath.Join(dir, resultJSON),
	}
}

// Open describes an existing run directory. weightsName and configName come from the
// trial configuration stored in it.
func Open(dir, weightsName, configName string) Run {
	return paths(filepath.Base(dir), dir, weightsName, configName)
}

// List returns the run directories under base that contain a result.json, oldest name first.
func List(base string) ([]string, error) {
	entries, err := os.ReadDir(base)
	if err != nil {
		return nil, fmt.Errorf("read runs dir: %w", err)
	}
	var dirs []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(base, entry.Name())
		if _, err := os.Stat(filepath.Join(dir, resultJSON)); err == nil {
			dirs = append(dirs, dir)
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}
