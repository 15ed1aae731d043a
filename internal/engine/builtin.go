// ABOUTME: Builtin plugin hosts backed by the mixer primitives
// ABOUTME: Lets the bridge run standalone without an external plugin SDK
package engine

import (
	"fmt"
	"sync"

	"github.com/novastudio/novabridge-go/internal/audio"
)

// Builtin plugin paths.
const (
	BuiltinPassthrough = "builtin:passthrough"
	BuiltinGain        = "builtin:gain"
	BuiltinLimiter     = "builtin:limiter"
)

// BuiltinLoader serves the builtin effects. It is the default loader wired
// into the bridge; an external plugin host replaces it at construction.
type BuiltinLoader struct{}

// NewBuiltinLoader returns a loader for the builtin effects.
func NewBuiltinLoader() *BuiltinLoader { return &BuiltinLoader{} }

func (l *BuiltinLoader) List() []PluginInfo {
	return []PluginInfo{
		{Name: "Passthrough", Vendor: "NovaBridge", Category: "Utility", Path: BuiltinPassthrough},
		{Name: "Gain", Vendor: "NovaBridge", Category: "Utility", Path: BuiltinGain},
		{Name: "Limiter", Vendor: "NovaBridge", Category: "Dynamics", Path: BuiltinLimiter},
	}
}

func (l *BuiltinLoader) Load(path string, sampleRate int) (Host, PluginInfo, error) {
	for _, info := range l.List() {
		if info.Path != path {
			continue
		}
		switch path {
		case BuiltinPassthrough:
			return &passthroughHost{}, info, nil
		case BuiltinGain:
			return &gainHost{gain: 1.0}, info, nil
		case BuiltinLimiter:
			return &limiterHost{threshold: 0.99}, info, nil
		}
	}
	return nil, PluginInfo{}, fmt.Errorf("unknown plugin path: %s", path)
}

func (l *BuiltinLoader) Unload(h Host) error { return nil }

type passthroughHost struct{}

func (p *passthroughHost) Process(chs [][]float32, sampleRate int) ([][]float32, error) {
	return chs, nil
}

// gainHost scales every sample by its gain parameter.
type gainHost struct {
	mu   sync.Mutex
	gain float64
}

func (g *gainHost) Process(chs [][]float32, sampleRate int) ([][]float32, error) {
	g.mu.Lock()
	gain := g.gain
	g.mu.Unlock()
	return audio.ApplyGain(chs, gain), nil
}

func (g *gainHost) SetParameter(name string, value float64) error {
	if name != "gain" {
		return fmt.Errorf("unknown parameter: %s", name)
	}
	g.mu.Lock()
	g.gain = value
	g.mu.Unlock()
	return nil
}

func (g *gainHost) Parameters() map[string]float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return map[string]float64{"gain": g.gain}
}

// limiterHost hard-clips to its threshold parameter.
type limiterHost struct {
	mu        sync.Mutex
	threshold float64
}

func (l *limiterHost) Process(chs [][]float32, sampleRate int) ([][]float32, error) {
	l.mu.Lock()
	threshold := l.threshold
	l.mu.Unlock()
	return audio.Limit(chs, threshold), nil
}

func (l *limiterHost) SetParameter(name string, value float64) error {
	if name != "threshold" {
		return fmt.Errorf("unknown parameter: %s", name)
	}
	if value <= 0 || value > 1 {
		return fmt.Errorf("threshold out of range: %f", value)
	}
	l.mu.Lock()
	l.threshold = value
	l.mu.Unlock()
	return nil
}

func (l *limiterHost) Parameters() map[string]float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return map[string]float64{"threshold": l.threshold}
}
