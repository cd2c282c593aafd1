package project

import (
	"fmt"
	"slices"
	"sort"

	"github.com/ivlev/screenreel/internal/apperr"
	"github.com/ivlev/screenreel/internal/timebase"
)

// Project is the editable document: recordings are held in an arena and
// clips refer to them by id only.
type Project struct {
	ID         string      `yaml:"id" json:"id"`
	Name       string      `yaml:"name,omitempty" json:"name,omitempty"`
	Recordings []Recording `yaml:"recordings" json:"recordings"`
	Clips      []Clip      `yaml:"clips" json:"clips"`
	Background Background  `yaml:"background" json:"background"`
	Cursor     CursorStyle `yaml:"cursor" json:"cursor"`

	recordingIndex map[string]int
	clipIndex      map[string]int
}

// New creates an empty project with default background and cursor.
func New(name string) *Project {
	return &Project{
		ID:         NewID(),
		Name:       name,
		Background: DefaultBackground(),
		Cursor:     DefaultCursorStyle(),
	}
}

// Clone returns a copy that later edits of p do not affect. Effect values
// are immutable, so effect lists are copied shallowly.
func (p *Project) Clone() *Project {
	c := *p
	c.Recordings = append([]Recording(nil), p.Recordings...)
	c.Clips = make([]Clip, len(p.Clips))
	for i, clip := range p.Clips {
		clip.Effects = append(Effects(nil), clip.Effects...)
		c.Clips[i] = clip
	}
	c.Background.Layers = append([]ParallaxLayer(nil), p.Background.Layers...)
	c.Reindex()
	return &c
}

// Reindex rebuilds the id lookup tables. Call it after editing Recordings
// or Clips directly.
func (p *Project) Reindex() {
	p.recordingIndex = make(map[string]int, len(p.Recordings))
	for i, r := range p.Recordings {
		p.recordingIndex[r.ID] = i
	}
	p.clipIndex = make(map[string]int, len(p.Clips))
	for i, c := range p.Clips {
		p.clipIndex[c.ID] = i
	}
}

// Recording looks a recording up by id.
func (p *Project) Recording(id string) (Recording, bool) {
	if p.recordingIndex != nil {
		if i, ok := p.recordingIndex[id]; ok && i < len(p.Recordings) && p.Recordings[i].ID == id {
			return p.Recordings[i], true
		}
	}
	for _, r := range p.Recordings {
		if r.ID == id {
			return r, true
		}
	}
	return Recording{}, false
}

// Clip looks a clip up by id.
func (p *Project) Clip(id string) (Clip, bool) {
	if p.clipIndex != nil {
		if i, ok := p.clipIndex[id]; ok && i < len(p.Clips) && p.Clips[i].ID == id {
			return p.Clips[i], true
		}
	}
	for _, c := range p.Clips {
		if c.ID == id {
			return c, true
		}
	}
	return Clip{}, false
}

// AddRecording appends a recording, assigning an id when missing.
func (p *Project) AddRecording(r Recording) Recording {
	if r.ID == "" {
		r.ID = NewID()
	}
	p.Recordings = append(p.Recordings, r)
	p.Reindex()
	return r
}

// AddClip appends a clip after checking it and its track neighbours.
func (p *Project) AddClip(c Clip) error {
	if c.ID == "" {
		c.ID = NewID()
	}
	if err := c.Validate(); err != nil {
		return err
	}
	if _, ok := p.Recording(c.RecordingID); !ok {
		return apperr.New(apperr.KindTimeMapping, "add clip", fmt.Errorf("%w %s: unknown recording %q", apperr.ErrInvalidClip, c.ID, c.RecordingID))
	}
	for _, other := range p.ClipsOnTrack(c.TrackIndex) {
		if overlap(c, other) {
			return fmt.Errorf("%w %s: overlaps clip %s on track %d", apperr.ErrInvalidClip, c.ID, other.ID, c.TrackIndex)
		}
	}
	p.Clips = append(p.Clips, c)
	p.Reindex()
	return nil
}

// Tracks returns the distinct track indexes in ascending order.
func (p *Project) Tracks() []int {
	seen := map[int]bool{}
	var tracks []int
	for _, c := range p.Clips {
		if !seen[c.TrackIndex] {
			seen[c.TrackIndex] = true
			tracks = append(tracks, c.TrackIndex)
		}
	}
	sort.Ints(tracks)
	return tracks
}

// ClipsOnTrack returns the track's clips ordered by timeline start.
func (p *Project) ClipsOnTrack(track int) []Clip {
	var out []Clip
	for _, c := range p.Clips {
		if c.TrackIndex == track {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TimelineStartMs < out[j].TimelineStartMs })
	return out
}

// Duration returns the end of the last clip on any track.
func (p *Project) Duration() timebase.TimelineMs {
	var end timebase.TimelineMs
	for _, c := range p.Clips {
		end = max(end, c.TimelineEndMs())
	}
	return end
}

// Validate checks every clip, every recording reference and that clips on
// one track do not overlap. Reference errors are time mapping errors.
func (p *Project) Validate() error {
	ids := map[string]bool{}
	for _, r := range p.Recordings {
		if r.ID == "" {
			return fmt.Errorf("recording without id")
		}
		if ids[r.ID] {
			return fmt.Errorf("duplicate recording id %s", r.ID)
		}
		ids[r.ID] = true
	}

	clipIDs := map[string]bool{}
	for _, c := range p.Clips {
		if clipIDs[c.ID] {
			return fmt.Errorf("%w: duplicate clip id %s", apperr.ErrInvalidClip, c.ID)
		}
		clipIDs[c.ID] = true
		if err := c.Validate(); err != nil {
			return err
		}
		if !ids[c.RecordingID] {
			return apperr.New(apperr.KindTimeMapping, "validate project",
				fmt.Errorf("%w %s: unknown recording %q", apperr.ErrInvalidClip, c.ID, c.RecordingID))
		}
	}

	for _, track := range p.Tracks() {
		clips := p.ClipsOnTrack(track)
		for i := 1; i < len(clips); i++ {
			if overlap(clips[i-1], clips[i]) {
				return fmt.Errorf("%w: clips %s and %s overlap on track %d",
					apperr.ErrInvalidClip, clips[i-1].ID, clips[i].ID, track)
			}
		}
	}
	return nil
}

// ReplaceClip swaps one clip for a run of sibling clips laid end to end from
// the original start. Later clips on the same track are shifted by the
// change in total length, so the track stays gap-free where it was. The
// replacement slice itself is not modified.
func (p *Project) ReplaceClip(id string, replacement []Clip) error {
	idx := -1
	for i, c := range p.Clips {
		if c.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: no clip %s", apperr.ErrInvalidClip, id)
	}
	if len(replacement) == 0 {
		return fmt.Errorf("%w: empty replacement for clip %s", apperr.ErrInvalidClip, id)
	}

	old := p.Clips[idx]
	placed := slices.Clone(replacement)
	cursor := old.TimelineStartMs
	for i := range placed {
		placed[i].TrackIndex = old.TrackIndex
		placed[i].TimelineStartMs = cursor
		if err := placed[i].Validate(); err != nil {
			return err
		}
		cursor = placed[i].TimelineEndMs()
	}
	delta := cursor - old.TimelineEndMs()

	clips := make([]Clip, 0, len(p.Clips)+len(replacement)-1)
	for i, c := range p.Clips {
		switch {
		case i == idx:
			clips = append(clips, placed...)
		case c.TrackIndex == old.TrackIndex && c.TimelineStartMs > old.TimelineStartMs:
			c.TimelineStartMs += delta
			clips = append(clips, c)
		default:
			clips = append(clips, c)
		}
	}
	p.Clips = clips
	p.Reindex()
	return nil
}

// UpdateClip replaces the clip with the same id.
func (p *Project) UpdateClip(c Clip) error {
	if err := c.Validate(); err != nil {
		return err
	}
	for i := range p.Clips {
		if p.Clips[i].ID == c.ID {
			p.Clips[i] = c
			return nil
		}
	}
	return fmt.Errorf("%w: no clip %s", apperr.ErrInvalidClip, c.ID)
}

func overlap(a, b Clip) bool {
	if a.ID == b.ID {
		return false
	}
	return a.TimelineStartMs < b.TimelineEndMs() && b.TimelineStartMs < a.TimelineEndMs()
}
