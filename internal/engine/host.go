// ABOUTME: Plugin host capability boundary
// ABOUTME: The engine depends on these interfaces, never on a concrete plugin SDK
package engine

// Host is one loaded plugin instance. Process takes a block of channel data
// and returns the processed block. Implementations may mutate and return the
// input slices or return fresh ones; the engine treats the return value as
// the result either way.
type Host interface {
	Process(channels [][]float32, sampleRate int) ([][]float32, error)
}

// ParamHost is implemented by hosts that expose adjustable parameters.
type ParamHost interface {
	Host
	SetParameter(name string, value float64) error
	Parameters() map[string]float64
}

// LatencyReporter is implemented by hosts that introduce processing latency.
// The reported value feeds the compensator so parallel slots stay aligned.
type LatencyReporter interface {
	LatencySamples() int
}

// PluginInfo describes a loadable plugin.
type PluginInfo struct {
	Name     string `json:"name"`
	Vendor   string `json:"vendor"`
	Category string `json:"category"`
	Path     string `json:"path"`
}

// Loader resolves plugin paths to live host instances. Discovery and actual
// DSP live behind this boundary.
type Loader interface {
	List() []PluginInfo
	Load(path string, sampleRate int) (Host, PluginInfo, error)
	Unload(h Host) error
}
