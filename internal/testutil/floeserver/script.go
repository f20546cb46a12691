package floeserver

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/dshills/runwatch/pkg/domain/run"
	"github.com/dshills/runwatch/pkg/domain/types"
)

// Script is a recorded run: the payload served on fetch and the frames replayed on the stream.
type Script struct {
	Flow     types.FlowID   `yaml:"flow"`
	Run      types.RunID    `yaml:"run"`
	Snapshot map[string]any `yaml:"snapshot"`
	Frames   []ScriptFrame  `yaml:"frames"`
}

// ScriptFrame is one replayed frame. Raw, when set, is sent verbatim; otherwise a
// ws envelope is built from the remaining fields for the script's run.
type ScriptFrame struct {
	Delay  time.Duration `yaml:"delay"`
	Raw    string        `yaml:"raw"`
	Tag    string        `yaml:"tag"`
	Node   string        `yaml:"node"`
	Good   bool          `yaml:"good"`
	Update string        `yaml:"update"`
	Fields []run.Field   `yaml:"fields"`
}

// LoadScript reads a YAML script from path.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	return ParseScript(data)
}

// ParseScript decodes a YAML script.
func ParseScript(data []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse script: %w", err)
	}
	if s.Flow == "" || s.Run == "" {
		return nil, fmt.Errorf("script must name a flow and a run")
	}
	if _, _, err := types.ParseRunID(s.Run); err != nil {
		return nil, err
	}
	for i, f := range s.Frames {
		if f.Raw == "" && f.Tag == "" {
			return nil, fmt.Errorf("frame %d: needs raw or tag", i)
		}
	}
	return &s, nil
}

// Frame renders frame i of the script.
func (s *Script) Frame(i int) ([]byte, error) {
	f := s.Frames[i]
	if f.Raw != "" {
		return []byte(f.Raw), nil
	}
	var opts map[string]any
	if f.Update != "" || f.Fields != nil {
		opts = map[string]any{}
		if f.Update != "" {
			opts["update"] = f.Update
		}
		if f.Fields != nil {
			opts["form"] = map[string]any{"fields": f.Fields}
		}
	}
	return MessageFrame(s.Flow, s.Run, f.Tag, types.NodeID(f.Node), f.Good, opts)
}

// Play installs the script's payload and broadcasts its frames in order.
// It returns when every frame has been sent or ctx is cancelled.
func (s *Server) Play(ctx context.Context, script *Script) error {
	if script.Snapshot != nil {
		if err := s.SetRun(script.Flow, script.Run, script.Snapshot); err != nil {
			return err
		}
	}

	for i, f := range script.Frames {
		delay := f.Delay
		if delay == 0 {
			delay = s.config.FrameInterval
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}

		frame, err := script.Frame(i)
		if err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		s.logger.Debug("replaying frame", zap.Int("index", i), zap.String("tag", f.Tag))
		s.Broadcast(frame)
	}
	return nil
}
