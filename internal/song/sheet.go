// Package song reads songs from disk into score notes.
package song

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/chase3718/autohold/internal/score"
)

// DataError is returned for any song that cannot be read or parsed.
type DataError = score.DataError

// Song is a loaded song.
type Song struct {
	Name  string
	Notes []score.Note
}

// Load reads a song, picking the format from the file extension: .mid and
// .midi are Standard MIDI Files, everything else is a JSON sheet.
func Load(path string) (*Song, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mid", ".midi":
		return LoadMIDI(path)
	default:
		return LoadSheet(path)
	}
}

// LoadSheet reads a JSON sheet file.
func LoadSheet(path string) (*Song, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &DataError{Source: path, Err: err}
	}
	defer f.Close()
	s, err := ReadSheet(f)
	if err != nil {
		var de *DataError
		if errors.As(err, &de) {
			de.Source = path
		}
		return nil, err
	}
	if s.Name == "" {
		s.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return s, nil
}

// ReadSheet parses a sheet. Sheets come in three shapes: an object with a
// songNotes list, a one-element array wrapping such an object, or a bare
// list of notes. UTF-8 and BOM-marked UTF-16 are both accepted.
func ReadSheet(r io.Reader) (*Song, error) {
	raw, err := io.ReadAll(transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	if err != nil {
		return nil, &DataError{Err: fmt.Errorf("read: %w", err)}
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, &DataError{Err: errors.New("empty sheet")}
	}

	var name string
	var list []sheetNote
	switch raw[0] {
	case '{':
		var doc sheetDoc
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, &DataError{Err: fmt.Errorf("parse: %w", err)}
		}
		name, list = doc.Name, doc.SongNotes
	case '[':
		var docs []sheetDoc
		if err := json.Unmarshal(raw, &docs); err == nil && len(docs) > 0 && docs[0].SongNotes != nil {
			name, list = docs[0].Name, docs[0].SongNotes
			break
		}
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, &DataError{Err: fmt.Errorf("parse: %w", err)}
		}
	default:
		return nil, &DataError{Err: fmt.Errorf("unexpected %q at start of sheet", raw[0])}
	}

	notes := make([]score.Note, 0, len(list))
	for i, sn := range list {
		n, err := sn.note()
		if err != nil {
			return nil, &DataError{Err: fmt.Errorf("note %d: %w", i, err)}
		}
		notes = append(notes, n)
	}
	return &Song{Name: name, Notes: notes}, nil
}

type sheetDoc struct {
	Name      string      `json:"name"`
	SongNotes []sheetNote `json:"songNotes"`
}

type sheetNote struct {
	Time *float64 `json:"time"`
	Key  string   `json:"key"`
	Hold *float64 `json:"hold"`
}

// note truncates times to whole milliseconds; a missing time means 0.
func (sn sheetNote) note() (score.Note, error) {
	n := score.Note{Key: sn.Key}
	if sn.Time != nil {
		t, err := wholeMs(*sn.Time)
		if err != nil {
			return n, fmt.Errorf("time: %w", err)
		}
		n.Time = t
	}
	if sn.Hold != nil {
		h, err := wholeMs(*sn.Hold)
		if err != nil {
			return n, fmt.Errorf("hold: %w", err)
		}
		n.Hold = &h
	}
	return n, nil
}

func wholeMs(v float64) (int64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v > math.MaxInt32 {
		return 0, fmt.Errorf("%v out of range", v)
	}
	return int64(v), nil
}
