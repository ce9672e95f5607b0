package song

import (
	"cmp"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/chase3718/autohold/internal/score"
)

// scalePitch lists the MIDI pitch of each sheet key, Key0 through Key14.
var scalePitch = score.LayoutPitches()

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

func pitchName(pitch int) string {
	if pitch < 0 {
		return fmt.Sprintf("?\"%d\"", pitch)
	}
	return fmt.Sprintf("%s%d", noteNames[pitch%12], (pitch/12)-1)
}

// foldPitch shifts a pitch by whole octaves into the instrument's range.
func foldPitch(pitch int) int {
	lo, hi := scalePitch[0], scalePitch[len(scalePitch)-1]
	for pitch < lo {
		pitch += 12
	}
	for pitch > hi {
		pitch -= 12
	}
	return pitch
}

// PitchKey returns the sheet key id for a MIDI pitch. Pitches outside the
// instrument are folded by octaves; pitches off the scale get their note
// name, which no default key mapping knows.
func PitchKey(pitch int) string {
	p := foldPitch(pitch)
	if i := slices.Index(scalePitch, p); i >= 0 {
		return fmt.Sprintf("Key%d", i)
	}
	return pitchName(p)
}

type chKey struct{ ch, key uint8 }

// LoadMIDI reads a Standard MIDI File. Each note-on/note-off pair becomes a
// note whose hold is the time between them; a note left sounding at the end
// of the file gets no explicit hold.
func LoadMIDI(path string) (*Song, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &DataError{Source: path, Err: err}
	}
	defer f.Close()

	type open struct {
		at  int64 // ms
		idx int
	}
	var notes []score.Note
	sounding := make(map[chKey][]open)

	rd := smf.ReadTracksFrom(f).Do(func(ev smf.TrackEvent) {
		at := ev.AbsMicroSeconds / 1000
		msg := midi.Message(ev.Message)
		var ch, key, vel uint8
		switch {
		case msg.GetNoteStart(&ch, &key, &vel):
			k := chKey{ch, key}
			sounding[k] = append(sounding[k], open{at: at, idx: len(notes)})
			notes = append(notes, score.Note{Time: at, Key: PitchKey(int(key))})
		case msg.GetNoteEnd(&ch, &key):
			k := chKey{ch, key}
			stack := sounding[k]
			if len(stack) == 0 {
				return
			}
			o := stack[0]
			sounding[k] = stack[1:]
			hold := max(0, at-o.at)
			notes[o.idx].Hold = &hold
		}
	})
	if err := rd.Error(); err != nil {
		return nil, &DataError{Source: path, Err: fmt.Errorf("midi: %w", err)}
	}

	// Tracks are read one after another; put the notes back in time order.
	slices.SortStableFunc(notes, func(a, b score.Note) int {
		return cmp.Compare(a.Time, b.Time)
	})
	return &Song{
		Name:  strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Notes: notes,
	}, nil
}
