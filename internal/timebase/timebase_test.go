package timebase

import (
	"math"
	"testing"
)

func TestFrameIndexRounding(t *testing.T) {
	tests := []struct {
		ms   float64
		fps  int
		want int
	}{
		{0, 30, 0},
		{1000, 30, 30},
		{16.6, 30, 0},   // 0.498 frames
		{16.7, 30, 1},   // 0.501 frames
		{50, 30, 2},     // exactly 1.5 frames rounds away from zero
		{-50, 30, -2},   // and away from zero for negatives
		{1000 / 3.0, 30, 10},
		{500, 0, 0},
	}

	for _, tt := range tests {
		if got := FrameIndex(tt.ms, tt.fps); got != tt.want {
			t.Errorf("FrameIndex(%v, %d) = %d, want %d", tt.ms, tt.fps, got, tt.want)
		}
	}
}

func TestFrameIndexAcceptsEveryTimeSpace(t *testing.T) {
	if FrameIndex(TimelineMs(1000), 60) != 60 {
		t.Error("timeline")
	}
	if FrameIndex(SourceMs(1000), 60) != 60 {
		t.Error("source")
	}
	if FrameIndex(ClipMs(1000), 60) != 60 {
		t.Error("clip")
	}
}

func TestFrameTimeRoundTrip(t *testing.T) {
	for _, fps := range []int{24, 25, 30, 60} {
		for frame := 0; frame < 500; frame++ {
			if got := FrameIndex(FrameTime(frame, fps), fps); got != frame {
				t.Fatalf("fps %d frame %d: round trip gave %d", fps, frame, got)
			}
		}
	}
}

func TestConversions(t *testing.T) {
	m := Mapping{TimelineStart: 2000, SourceIn: 500, SourceOut: 1700, Rate: 1.2}

	if d := m.Duration(); math.Abs(float64(d)-1000) > 1e-9 {
		t.Fatalf("duration = %v, want 1000", d)
	}

	clip := ToClipRelative(m, 2250)
	if clip != 250 {
		t.Errorf("clip relative = %v, want 250", clip)
	}
	if src := ToSourceTime(m, clip); math.Abs(float64(src)-800) > 1e-9 {
		t.Errorf("source = %v, want 800", src)
	}
	if back := ToClipFromSource(m, ToSourceTime(m, clip)); math.Abs(float64(back-clip)) > 1e-9 {
		t.Errorf("source->clip = %v, want %v", back, clip)
	}
	if tl := ToTimeline(m, clip); tl != 2250 {
		t.Errorf("timeline = %v, want 2250", tl)
	}
	if end := m.TimelineEnd(); math.Abs(float64(end)-3000) > 1e-9 {
		t.Errorf("timeline end = %v, want 3000", end)
	}
}

func TestClamp(t *testing.T) {
	m := Mapping{SourceIn: 0, SourceOut: 1000, Rate: 1}
	if m.Clamp(-5) != 0 {
		t.Error("negative offset not clamped")
	}
	if m.Clamp(1500) != 1000 {
		t.Error("offset past end not clamped")
	}
	if m.Clamp(400) != 400 {
		t.Error("in-range offset changed")
	}
}
