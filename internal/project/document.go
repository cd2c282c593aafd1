package project

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ivlev/screenreel/internal/timebase"
)

// effectDoc is the on-disk shape of an Effect: a type tag plus the payload
// for that type.
type effectDoc struct {
	Type       string          `yaml:"type"`
	StartMs    timebase.ClipMs `yaml:"start_ms"`
	EndMs      timebase.ClipMs `yaml:"end_ms"`
	Blocks     []ZoomBlock     `yaml:"blocks,omitempty"`
	Background *Background     `yaml:"background,omitempty"`
	Style      *CursorStyle    `yaml:"style,omitempty"`
}

type docWriter struct{ out []effectDoc }

func (w *docWriter) VisitZoom(z ZoomEffect) {
	w.out = append(w.out, effectDoc{Type: "zoom", StartMs: z.StartMs, EndMs: z.EndMs, Blocks: z.Blocks})
}

func (w *docWriter) VisitBackground(b BackgroundEffect) {
	bg := b.Background
	w.out = append(w.out, effectDoc{Type: "background", StartMs: b.StartMs, EndMs: b.EndMs, Background: &bg})
}

func (w *docWriter) VisitCursor(c CursorEffect) {
	style := c.Style
	w.out = append(w.out, effectDoc{Type: "cursor", StartMs: c.StartMs, EndMs: c.EndMs, Style: &style})
}

func (es Effects) MarshalYAML() (interface{}, error) {
	w := &docWriter{}
	for _, e := range es {
		e.Accept(w)
	}
	return w.out, nil
}

func (es *Effects) UnmarshalYAML(node *yaml.Node) error {
	var docs []effectDoc
	if err := node.Decode(&docs); err != nil {
		return err
	}

	out := make(Effects, 0, len(docs))
	for i, d := range docs {
		switch d.Type {
		case "zoom":
			z := ZoomEffect{StartMs: d.StartMs, EndMs: d.EndMs, Blocks: d.Blocks}
			// A zoom effect without an explicit range covers its blocks.
			if z.StartMs == 0 && z.EndMs == 0 && len(z.Blocks) > 0 {
				z.StartMs = z.Blocks[0].StartMs
				z.EndMs = z.Blocks[len(z.Blocks)-1].EndMs
			}
			out = append(out, z)
		case "background":
			if d.Background == nil {
				return fmt.Errorf("effect %d: background effect without background", i)
			}
			out = append(out, BackgroundEffect{StartMs: d.StartMs, EndMs: d.EndMs, Background: *d.Background})
		case "cursor":
			if d.Style == nil {
				return fmt.Errorf("effect %d: cursor effect without style", i)
			}
			out = append(out, CursorEffect{StartMs: d.StartMs, EndMs: d.EndMs, Style: *d.Style})
		default:
			return fmt.Errorf("effect %d: unknown effect type %q", i, d.Type)
		}
	}
	*es = out
	return nil
}

// Parse decodes a project document. YAML is a superset of JSON, so both
// formats are accepted.
func Parse(data []byte) (*Project, error) {
	p := &Project{
		Background: DefaultBackground(),
		Cursor:     DefaultCursorStyle(),
	}
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, err
	}
	for i := range p.Clips {
		if p.Clips[i].PlaybackRate == 0 {
			p.Clips[i].PlaybackRate = 1
		}
	}
	if p.Cursor.Size == 0 {
		p.Cursor.Size = 1
	}
	p.Reindex()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Load reads a project document from a YAML or JSON file.
func Load(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("project %s: %w", path, err)
	}
	return p, nil
}

// Save writes a project document as YAML.
func Save(p *Project, path string) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
