package director

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/screenreel/internal/analyzer"
	"github.com/ivlev/screenreel/internal/events"
	"github.com/ivlev/screenreel/internal/project"
	"github.com/ivlev/screenreel/internal/timebase"
)

func demoProject(t *testing.T) *project.Project {
	t.Helper()
	p := project.New("demo")
	p.AddRecording(rec)
	p.AddRecording(project.Recording{ID: "quiet", CaptureWidth: 1000, CaptureHeight: 1000, FPS: 30})
	require.NoError(t, p.AddClip(clipOf(1)))
	quiet := clipOf(1)
	quiet.ID, quiet.RecordingID, quiet.TrackIndex = "q", "quiet", 1
	require.NoError(t, p.AddClip(quiet))
	return p
}

func demoStreams() map[string]*events.Stream {
	samples := append(keys(2000, 200, 10), click(6000, 500, 500))
	return map[string]*events.Stream{rec.ID: events.NewStream(samples)}
}

func TestGenerateAndApplyScenario(t *testing.T) {
	p := demoProject(t)
	s, err := NewDirector().GenerateScenario(context.Background(), p, demoStreams())
	require.NoError(t, err)
	assert.Equal(t, p.ID, s.ProjectID)
	require.Len(t, s.Clips, 1)
	assert.Equal(t, "c", s.Clips[0].ClipID)
	require.Len(t, s.Clips[0].Zoom, 1)
	require.Len(t, s.Clips[0].Speedups, 1)

	skipped, err := Apply(p, s)
	require.NoError(t, err)
	assert.Zero(t, skipped)
	require.NoError(t, p.Validate())

	track := p.ClipsOnTrack(0)
	require.Len(t, track, 3)
	assert.Equal(t, 3.0, track[1].PlaybackRate)

	// the click at 6000 lands 2000ms into the last piece
	z, ok := track[2].Effects[0].(project.ZoomEffect)
	require.True(t, ok)
	require.Len(t, z.Blocks, 1)
	assert.InDelta(t, 1400, float64(z.Blocks[0].StartMs), 1e-9)
}

func TestApplySkipsOverlappingZoom(t *testing.T) {
	p := demoProject(t)
	target := &project.Rect{X: 0.25, Y: 0.25, W: 0.5, H: 0.5}
	s := &Scenario{Version: scenarioVersion, ProjectID: p.ID, Clips: []ClipPlan{{
		ClipID: "q",
		Zoom: []project.ZoomBlock{
			{StartMs: 100, EndMs: 900, Target: target},
			{StartMs: 500, EndMs: 1500, Target: target},
		},
	}}}

	skipped, err := Apply(p, s)
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)

	q, ok := p.Clip("q")
	require.True(t, ok)
	z := q.Effects[0].(project.ZoomEffect)
	assert.Len(t, z.Blocks, 1)
}

func TestApplyRejectsForeignScenario(t *testing.T) {
	p := demoProject(t)
	_, err := Apply(p, &Scenario{Version: scenarioVersion, ProjectID: "other"})
	assert.Error(t, err)

	_, err = Apply(p, &Scenario{Version: scenarioVersion, Clips: []ClipPlan{{ClipID: "missing"}}})
	assert.Error(t, err)
}

func TestGenerateScenarioNeedsClips(t *testing.T) {
	_, err := NewDirector().GenerateScenario(context.Background(), project.New("empty"), nil)
	assert.Error(t, err)
}

func TestScenarioWriteRead(t *testing.T) {
	p := demoProject(t)
	s, err := NewDirector().GenerateScenario(context.Background(), p, demoStreams())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "nested", "scenario.yaml")
	require.NoError(t, WriteScenario(s, path))
	got, err := ReadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, s, got)

	require.NoError(t, os.WriteFile(path, []byte("version: \"0.1\"\n"), 0644))
	_, err = ReadScenario(path)
	assert.Error(t, err)

	bad := "version: \"1.0\"\nclips:\n  - clip_id: c\n    zoom:\n      - {start_ms: 10, end_ms: 10, follow: pointer}\n"
	require.NoError(t, os.WriteFile(path, []byte(bad), 0644))
	_, err = ReadScenario(path)
	assert.Error(t, err)
}

func TestGenerateScenarioPath(t *testing.T) {
	at := time.Date(2026, 2, 13, 1, 2, 3, 0, time.UTC)
	assert.Equal(t, filepath.Join("scenarios", "scenario_2026-02-13_01-02-03.yaml"), GenerateScenarioPath("scenarios", at))
}

func TestFindLatestScenario(t *testing.T) {
	dir := t.TempDir()
	_, err := FindLatestScenario(dir)
	assert.Error(t, err)

	files := []string{
		filepath.Join(dir, "scenario_2026-02-12_10-00-00.yaml"),
		filepath.Join(dir, "scenario_2026-02-13_01-00-00.yaml"),
		filepath.Join(dir, "scenario_2026-02-11_15-30-00.yaml"),
	}
	base := time.Now().Add(-time.Hour)
	for i, f := range files {
		require.NoError(t, os.WriteFile(f, []byte("version: \"1.0\"\n"), 0644))
		mod := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, os.Chtimes(f, mod, mod))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.yaml"), nil, 0644))

	latest, err := FindLatestScenario(dir)
	require.NoError(t, err)
	assert.Equal(t, files[2], latest)
}

func boxFrame(w, h int, box image.Rectangle) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{R: 0x20, G: 0x20, B: 0x20, A: 0xff}), image.Point{}, draw.Src)
	draw.Draw(img, box, image.NewUniform(color.RGBA{R: 0xf0, G: 0xf0, B: 0xf0, A: 0xff}), image.Point{}, draw.Src)
	return img
}

func TestGenerateScenarioFramesDetectedRegion(t *testing.T) {
	p := demoProject(t)
	streams := map[string]*events.Stream{rec.ID: events.NewStream([]events.Sample{click(6000, 500, 500)})}

	var asked []timebase.SourceMs
	d := NewDirector()
	d.Frames = func(_ context.Context, r project.Recording, at timebase.SourceMs) (image.Image, error) {
		assert.Equal(t, rec.ID, r.ID)
		asked = append(asked, at)
		return boxFrame(1000, 1000, image.Rect(400, 400, 700, 600)), nil
	}
	s, err := d.GenerateScenario(context.Background(), p, streams)
	require.NoError(t, err)
	require.Len(t, s.Clips, 1)
	require.Len(t, s.Clips[0].Zoom, 1)
	assert.Equal(t, []timebase.SourceMs{6450}, asked)

	target := s.Clips[0].Zoom[0].Target
	cx, cy := target.Center()
	assert.InDelta(t, 0.55, cx, 0.02)
	assert.InDelta(t, 0.5, cy, 0.02)
	assert.InDelta(t, 0.35, target.W, 0.02)

	d.Options.Detector = "none"
	s, err = d.GenerateScenario(context.Background(), p, streams)
	require.NoError(t, err)
	cx, _ = s.Clips[0].Zoom[0].Target.Center()
	assert.InDelta(t, 0.5, cx, 1e-9)

	d.Options.Detector = "ocr"
	_, err = d.GenerateScenario(context.Background(), p, streams)
	assert.Error(t, err)
}

func TestFrameTargetKeepsOriginalWithoutRegion(t *testing.T) {
	d := NewDirector()
	d.Frames = func(context.Context, project.Recording, timebase.SourceMs) (image.Image, error) {
		return nil, errors.New("decode failed")
	}
	p := demoProject(t)
	s, err := d.GenerateScenario(context.Background(), p, map[string]*events.Stream{rec.ID: events.NewStream([]events.Sample{click(6000, 500, 500)})})
	require.NoError(t, err)
	cx, _ := s.Clips[0].Zoom[0].Target.Center()
	assert.InDelta(t, 0.5, cx, 1e-9)

	flat := boxFrame(100, 100, image.Rectangle{})
	_, ok := FrameTarget(flat, project.Rect{X: 0.4, Y: 0.4, W: 0.2, H: 0.2}, analyzerFor(t), DefaultOptions())
	assert.False(t, ok)
}

func analyzerFor(t *testing.T) analyzer.Detector {
	t.Helper()
	det, err := analyzer.NewDetector("contrast")
	require.NoError(t, err)
	return det
}
