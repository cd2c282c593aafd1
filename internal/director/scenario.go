package director

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/ivlev/screenreel/internal/analyzer"
	"github.com/ivlev/screenreel/internal/apperr"
	"github.com/ivlev/screenreel/internal/events"
	"github.com/ivlev/screenreel/internal/logging"
	"github.com/ivlev/screenreel/internal/project"
	"github.com/ivlev/screenreel/internal/timebase"
)

const scenarioVersion = "1.0"

// Scenario is a reviewable set of suggested edits for one project. It is
// written to YAML so it can be edited before being applied.
type Scenario struct {
	Version   string     `yaml:"version"`
	ProjectID string     `yaml:"project_id"`
	Clips     []ClipPlan `yaml:"clips"`
}

// ClipPlan holds the edits for one clip.
type ClipPlan struct {
	ClipID   string              `yaml:"clip_id"`
	Zoom     []project.ZoomBlock `yaml:"zoom,omitempty"`
	Speedups []Speedup           `yaml:"speedups,omitempty"`
}

// FrameFunc returns a recording's frame at a source time.
type FrameFunc func(ctx context.Context, rec project.Recording, t timebase.SourceMs) (image.Image, error)

// Director turns recorded input events into edit suggestions.
type Director struct {
	Options Options
	// Frames, when set, lets zoom targets snap to the UI region under the
	// clicks instead of a plain square around them.
	Frames FrameFunc
}

// NewDirector creates a Director with default settings
func NewDirector() *Director {
	return &Director{Options: DefaultOptions()}
}

// GenerateScenario suggests zoom blocks and typing speed-ups for every clip
// whose recording has events. Clips with nothing to suggest are left out.
func (d *Director) GenerateScenario(ctx context.Context, p *project.Project, streams map[string]*events.Stream) (*Scenario, error) {
	if len(p.Clips) == 0 {
		return nil, fmt.Errorf("project %s has no clips", p.ID)
	}
	det, err := analyzer.NewDetector(d.Options.Detector)
	if err != nil {
		return nil, err
	}

	s := &Scenario{Version: scenarioVersion, ProjectID: p.ID}
	for _, track := range p.Tracks() {
		for _, clip := range p.ClipsOnTrack(track) {
			stream := streams[clip.RecordingID]
			if stream == nil {
				continue
			}
			rec, ok := p.Recording(clip.RecordingID)
			if !ok {
				continue
			}
			plan := ClipPlan{
				ClipID:   clip.ID,
				Zoom:     SuggestZoomBlocks(clip, rec, stream.Clicks.Samples(), d.Options),
				Speedups: TypingBursts(clip, stream.Keys.Samples(), d.Options),
			}
			if d.Frames != nil && det != nil {
				d.refine(ctx, clip, rec, plan.Zoom, det)
			}
			if len(plan.Zoom) > 0 || len(plan.Speedups) > 0 {
				s.Clips = append(s.Clips, plan)
			}
		}
	}
	return s, nil
}

// refine replaces each block's target with one framing the detected region
// under it, looking at the frame shown halfway through the block.
func (d *Director) refine(ctx context.Context, clip project.Clip, rec project.Recording, blocks []project.ZoomBlock, det analyzer.Detector) {
	log := logging.WithComponent("director")
	for i, b := range blocks {
		if b.Target == nil {
			continue
		}
		at := timebase.ToSourceTime(clip.Mapping(), (b.StartMs+b.EndMs)/2)
		img, err := d.Frames(ctx, rec, at)
		if err != nil {
			log.Debug().Err(err).Str("clip", clip.ID).Float64("source_ms", float64(at)).Msg("no frame to refine zoom target")
			continue
		}
		if target, ok := FrameTarget(img, *b.Target, det, d.Options); ok {
			blocks[i].Target = &target
		}
	}
}

// FrameTarget finds the region of img under the center of target and
// returns a target framing it. It reports false when nothing suitable is
// found, in which case the original target should be kept.
func FrameTarget(img image.Image, target project.Rect, det analyzer.Detector, opts Options) (project.Rect, bool) {
	bounds := img.Bounds()
	if bounds.Empty() {
		return project.Rect{}, false
	}
	w, h := float64(bounds.Dx()), float64(bounds.Dy())
	cx, cy := target.Center()
	pt := image.Pt(bounds.Min.X+int(cx*w), bounds.Min.Y+int(cy*h))

	found, err := det.Detect(img)
	if err != nil {
		return project.Rect{}, false
	}
	block, ok := analyzer.BlockAt(found, pt)
	if !ok {
		return project.Rect{}, false
	}
	r := block.Rect.Sub(bounds.Min)
	return frame(float64(r.Min.X)/w, float64(r.Min.Y)/h, float64(r.Max.X)/w, float64(r.Max.Y)/h, opts)
}

// Apply performs a scenario's edits on p and returns how many zoom blocks
// were skipped because they overlap blocks the clip already has. Zoom
// blocks go in first and the clip is then split for its speed-ups, so the
// blocks follow their content.
func Apply(p *project.Project, s *Scenario) (int, error) {
	if s.ProjectID != "" && s.ProjectID != p.ID {
		return 0, fmt.Errorf("scenario is for project %s, not %s", s.ProjectID, p.ID)
	}
	skipped := 0
	for _, plan := range s.Clips {
		clip, ok := p.Clip(plan.ClipID)
		if !ok {
			return skipped, fmt.Errorf("scenario clip %s not in project", plan.ClipID)
		}
		for _, b := range plan.Zoom {
			_, err := clip.InsertZoomBlock(b, project.RejectOverlap, 0)
			if errors.Is(err, apperr.ErrZoomOverlap) {
				skipped++
				continue
			}
			if err != nil {
				return skipped, fmt.Errorf("clip %s: %w", clip.ID, err)
			}
		}
		pieces, err := ApplySpeedups(clip, plan.Speedups)
		if err != nil {
			return skipped, fmt.Errorf("clip %s: %w", clip.ID, err)
		}
		if err := p.ReplaceClip(clip.ID, pieces); err != nil {
			return skipped, err
		}
	}
	return skipped, nil
}
