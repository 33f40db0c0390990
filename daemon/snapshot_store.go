package daemon

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/framegrace/texelprobe/screen"
)

// SnapshotStore persists the final screen text to disk with a content hash
// for integrity checks.
type SnapshotStore struct {
	path string
	mu   sync.Mutex
}

// StoredSnapshot is the serialized representation written to disk.
type StoredSnapshot struct {
	Timestamp time.Time `json:"timestamp"`
	Hash      string    `json:"hash"`
	Title     string    `json:"title,omitempty"`
	Cols      int       `json:"cols"`
	Rows      int       `json:"rows"`
	CursorRow int       `json:"cursor_row"`
	CursorCol int       `json:"cursor_col"`
	Lines     []string  `json:"lines"`
}

func NewSnapshotStore(path string) *SnapshotStore {
	return &SnapshotStore{path: path}
}

func (s *SnapshotStore) Path() string { return s.path }

// Save writes snap to disk, computing a SHA-1 hash over its lines.
func (s *SnapshotStore) Save(snap screen.Snapshot, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := StoredSnapshot{
		Timestamp: time.Now().UTC(),
		Title:     title,
		Cols:      int(snap.Width),
		Rows:      int(snap.Height),
		CursorRow: snap.Cursor.Row,
		CursorCol: snap.Cursor.Col,
		Lines:     snap.Lines(),
	}
	stored.Hash = hashLines(stored.Lines, title)

	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o644)
}

// Load retrieves the most recent stored snapshot from disk.
func (s *SnapshotStore) Load() (StoredSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stored StoredSnapshot
	data, err := os.ReadFile(s.path)
	if err != nil {
		return stored, err
	}
	if err := json.Unmarshal(data, &stored); err != nil {
		return stored, err
	}
	return stored, nil
}

func hashLines(lines []string, title string) string {
	hasher := sha1.New()
	for _, line := range lines {
		hasher.Write([]byte(line))
		hasher.Write([]byte{'\n'})
	}
	hasher.Write([]byte(title))
	return hex.EncodeToString(hasher.Sum(nil))
}

// Verify reports whether the stored hash matches the stored lines.
func (sp StoredSnapshot) Verify() bool {
	return sp.Hash == hashLines(sp.Lines, sp.Title)
}

// Snapshot rebuilds an unstyled snapshot from the stored text.
func (sp StoredSnapshot) Snapshot() screen.Snapshot {
	cells := make([][]screen.Cell, sp.Rows)
	for y := range cells {
		cells[y] = make([]screen.Cell, sp.Cols)
		for x := range cells[y] {
			cells[y][x] = screen.BlankCell
		}
		if y < len(sp.Lines) {
			x := 0
			for _, r := range sp.Lines[y] {
				if x >= sp.Cols {
					break
				}
				cells[y][x] = screen.Cell{Char: r}
				x++
			}
		}
	}
	return screen.Snapshot{
		Width:  uint16(sp.Cols),
		Height: uint16(sp.Rows),
		Cursor: screen.Position{Row: sp.CursorRow, Col: sp.CursorCol},
		Cells:  cells,
	}
}
