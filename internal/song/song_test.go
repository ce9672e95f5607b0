package song

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf16"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

func TestReadSheetShapes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantName string
		wantLen  int
	}{
		{
			name:     "object",
			input:    `{"name":"Ode","songNotes":[{"time":0,"key":"1Key0"},{"time":500,"key":"1Key2"}]}`,
			wantName: "Ode",
			wantLen:  2,
		},
		{
			name:     "wrapped array",
			input:    `[{"name":"Ode","bpm":240,"songNotes":[{"time":0,"key":"1Key0"}]}]`,
			wantName: "Ode",
			wantLen:  1,
		},
		{
			name:    "bare list",
			input:   `[{"time":0,"key":"Key0"},{"time":250.7,"key":"Key1","hold":300}]`,
			wantLen: 2,
		},
		{
			name:    "empty list",
			input:   `[]`,
			wantLen: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := ReadSheet(strings.NewReader(tt.input))
			if err != nil {
				t.Fatalf("ReadSheet() error = %v", err)
			}
			if s.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", s.Name, tt.wantName)
			}
			if len(s.Notes) != tt.wantLen {
				t.Errorf("len(Notes) = %d, want %d", len(s.Notes), tt.wantLen)
			}
		})
	}
}

func TestReadSheetNoteFields(t *testing.T) {
	s, err := ReadSheet(strings.NewReader(`[{"key":"Key3"},{"time":250.7,"key":"Key1","hold":300.9}]`))
	if err != nil {
		t.Fatal(err)
	}
	first, second := s.Notes[0], s.Notes[1]
	if first.Time != 0 || first.Hold != nil || first.Key != "Key3" {
		t.Errorf("first note = %+v", first)
	}
	if second.Time != 250 {
		t.Errorf("Time = %d, want 250", second.Time)
	}
	if second.Hold == nil || *second.Hold != 300 {
		t.Errorf("Hold = %v, want 300", second.Hold)
	}
}

func TestReadSheetUTF16(t *testing.T) {
	text := `[{"name":"Sky","songNotes":[{"time":0,"key":"1Key4"}]}]`
	units := utf16.Encode([]rune(text))
	buf := []byte{0xFF, 0xFE}
	for _, u := range units {
		buf = append(buf, byte(u), byte(u>>8))
	}

	s, err := ReadSheet(strings.NewReader(string(buf)))
	if err != nil {
		t.Fatalf("ReadSheet() error = %v", err)
	}
	if s.Name != "Sky" || len(s.Notes) != 1 || s.Notes[0].Key != "1Key4" {
		t.Errorf("ReadSheet() = %+v", s)
	}
}

func TestReadSheetErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", "   "},
		{"not json", "hello"},
		{"truncated", `{"songNotes":[{"time":0`},
		{"negative time", `[{"time":-5,"key":"Key0"}]`},
		{"string time", `[{"time":"soon","key":"Key0"}]`},
		{"negative hold", `[{"time":0,"key":"Key0","hold":-1}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadSheet(strings.NewReader(tt.input))
			var de *DataError
			if !errors.As(err, &de) {
				t.Errorf("ReadSheet() error = %v, want *DataError", err)
			}
		})
	}
}

func TestLoadSheetFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Happy Song.json")
	if err := os.WriteFile(path, []byte(`[{"time":0,"key":"Key0"}]`), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.Name != "Happy Song" {
		t.Errorf("Name = %q, want file stem", s.Name)
	}

	_, err = Load(filepath.Join(dir, "missing.json"))
	var de *DataError
	if !errors.As(err, &de) || de.Source == "" {
		t.Errorf("Load(missing) error = %v, want *DataError with source", err)
	}
}

func TestPitchKey(t *testing.T) {
	tests := []struct {
		pitch int
		want  string
	}{
		{60, "Key0"},
		{72, "Key7"},
		{84, "Key14"},
		{48, "Key0"},
		{96, "Key14"},
		{61, "C#4"},
		{85, "C#5"},
	}
	for _, tt := range tests {
		if got := PitchKey(tt.pitch); got != tt.want {
			t.Errorf("PitchKey(%d) = %q, want %q", tt.pitch, got, tt.want)
		}
	}
}

func TestLoadMIDI(t *testing.T) {
	var tr smf.Track
	tr.Add(0, smf.MetaTempo(120))
	tr.Add(0, midi.NoteOn(0, 60, 100))
	tr.Add(0, midi.NoteOn(0, 64, 100))
	tr.Add(960, midi.NoteOff(0, 60))
	tr.Add(0, midi.NoteOff(0, 64))
	tr.Add(480, midi.NoteOn(0, 61, 90))
	tr.Add(480, midi.NoteOff(0, 61))
	tr.Add(0, midi.NoteOn(0, 67, 90))
	tr.Close(0)

	sm := smf.New()
	sm.TimeFormat = smf.MetricTicks(960)
	if err := sm.Add(tr); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "tune.mid")
	if err := sm.WriteFile(path); err != nil {
		t.Fatal(err)
	}

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.Name != "tune" {
		t.Errorf("Name = %q, want tune", s.Name)
	}
	if len(s.Notes) != 4 {
		t.Fatalf("len(Notes) = %d, want 4: %+v", len(s.Notes), s.Notes)
	}

	want := []struct {
		time int64
		key  string
		hold int64 // -1 for none
	}{
		{0, "Key0", 500},
		{0, "Key2", 500},
		{750, "C#4", 250},
		{1000, "Key4", -1},
	}
	for i, w := range want {
		n := s.Notes[i]
		if n.Time != w.time || n.Key != w.key {
			t.Errorf("note %d = %+v, want time %d key %s", i, n, w.time, w.key)
		}
		switch {
		case w.hold < 0 && n.Hold != nil:
			t.Errorf("note %d hold = %d, want none", i, *n.Hold)
		case w.hold >= 0 && (n.Hold == nil || *n.Hold != w.hold):
			t.Errorf("note %d hold = %v, want %d", i, n.Hold, w.hold)
		}
	}
}

func TestLoadMIDIGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.mid")
	if err := os.WriteFile(path, []byte("not a midi file"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path)
	var de *DataError
	if !errors.As(err, &de) {
		t.Errorf("Load() error = %v, want *DataError", err)
	}
}
