package mapping

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/soar/conductor/internal/catalog"
	"github.com/soar/conductor/internal/input"
)

// Sentinel rows carry operating-mode state in the Function column. The
// legacy boolean row is read for backward compatibility, never written.
const (
	rowReverserMode   = "@mode/reverser"
	rowThrottleMode   = "@mode/throttle"
	rowPositionPrefix = "@reverser/"

	legacyReverserRow = "reverser_switch_mode"
)

var header = []string{"Function", "Device", "Type", "Index", "Reverse", "Direction"}

// Store reads and writes a Table as a flat CSV file.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string { return s.path }

// Save writes the whole table: function rows in catalog order, then mode
// sentinels, then reverser position rows.
func (s *Store) Save(t *Table) error {
	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("save mappings: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("save mappings: %w", err)
	}

	for _, m := range t.All() {
		rec := []string{
			m.Function,
			strconv.Itoa(m.Locator.Device),
			m.Locator.Kind.String(),
			strconv.Itoa(m.Locator.Index),
			strconv.FormatBool(m.ReverseAxis),
			m.Locator.HatDir.String(),
		}
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("save mappings: %w", err)
		}
	}

	if err := w.Write([]string{rowReverserMode, t.ReverserMode().String(), "", "", "", ""}); err != nil {
		return fmt.Errorf("save mappings: %w", err)
	}
	if err := w.Write([]string{rowThrottleMode, t.ThrottleMode().String(), "", "", "", ""}); err != nil {
		return fmt.Errorf("save mappings: %w", err)
	}
	for _, p := range []ReverserPosition{PositionForward, PositionNeutral, PositionReverse} {
		loc, ok := t.ReverserPosition(p)
		if !ok {
			continue
		}
		rec := []string{
			rowPositionPrefix + p.String(),
			strconv.Itoa(loc.Device),
			loc.Kind.String(),
			strconv.Itoa(loc.Index),
			"false",
			loc.HatDir.String(),
		}
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("save mappings: %w", err)
		}
	}

	w.Flush()
	return w.Error()
}

// Load populates t from the file. A missing file is not an error; the table
// is left empty. Malformed rows are logged and skipped.
func (s *Store) Load(t *Table) error {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("load mappings: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // legacy files have 5 columns

	records, err := r.ReadAll()
	if err != nil {
		return fmt.Errorf("load mappings: %w", err)
	}

	sawNewModeRow := false
	legacySwitchMode := false
	sawLegacyRow := false

	for i, rec := range records {
		if i == 0 && len(rec) > 0 && rec[0] == "Function" {
			continue
		}
		if len(rec) < 2 {
			continue
		}
		name := rec[0]

		switch {
		case name == rowReverserMode:
			if m, ok := ParseReverserMode(rec[1]); ok {
				t.SetReverserMode(m)
				sawNewModeRow = true
			} else {
				log.Printf("mappings: unknown reverser mode %q, keeping axis", rec[1])
			}
			continue
		case name == rowThrottleMode:
			if m, ok := ParseThrottleMode(rec[1]); ok {
				t.SetThrottleMode(m)
			} else {
				log.Printf("mappings: unknown throttle mode %q, keeping separate", rec[1])
			}
			continue
		case name == legacyReverserRow:
			sawLegacyRow = true
			legacySwitchMode = rec[1] == "true" || rec[1] == "True"
			continue
		case len(name) > len(rowPositionPrefix) && name[:len(rowPositionPrefix)] == rowPositionPrefix:
			loc, ok := parseLocator(rec)
			if !ok {
				log.Printf("mappings: bad reverser position row %v, skipped", rec)
				continue
			}
			switch name[len(rowPositionPrefix):] {
			case "forward":
				t.SetReverserPosition(PositionForward, loc)
			case "neutral":
				t.SetReverserPosition(PositionNeutral, loc)
			case "reverse":
				t.SetReverserPosition(PositionReverse, loc)
			default:
				log.Printf("mappings: unknown reverser position row %q, skipped", name)
			}
			continue
		}

		if _, ok := catalog.Lookup(name); !ok {
			log.Printf("mappings: unknown function %q, skipped", name)
			continue
		}
		loc, ok := parseLocator(rec)
		if !ok {
			log.Printf("mappings: bad row for %q, skipped", name)
			continue
		}
		reverse := len(rec) > 4 && (rec[4] == "true" || rec[4] == "True")
		t.Set(name, loc, reverse)
	}

	// Old files carried only a boolean switch-mode flag. Honor it when the
	// new sentinel is absent: true meant the 3-position switch.
	if sawLegacyRow && !sawNewModeRow {
		if legacySwitchMode {
			t.SetReverserMode(ReverserThreeWay)
		} else {
			t.SetReverserMode(ReverserAxis)
		}
	}
	return nil
}

func parseLocator(rec []string) (Locator, bool) {
	if len(rec) < 4 {
		return Locator{}, false
	}
	device, err := strconv.Atoi(rec[1])
	if err != nil {
		return Locator{}, false
	}
	kind, ok := input.ParseKind(rec[2])
	if !ok {
		return Locator{}, false
	}
	index, err := strconv.Atoi(rec[3])
	if err != nil {
		return Locator{}, false
	}
	dir := HatNone
	if len(rec) > 5 {
		dir, ok = ParseHatDirection(rec[5])
		if !ok {
			return Locator{}, false
		}
	}
	if dir != HatNone && kind != input.KindHat {
		return Locator{}, false
	}
	return Locator{Device: device, Kind: kind, Index: index, HatDir: dir}, true
}
