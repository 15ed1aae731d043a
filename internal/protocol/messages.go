// ABOUTME: Control message definitions for the bridge protocol
// ABOUTME: Flat JSON envelopes selected by an action field
package protocol

// Request actions accepted from clients.
const (
	ActionPing          = "PING"
	ActionGetConfig     = "GET_CONFIG"
	ActionSetConfig     = "SET_CONFIG"
	ActionStartStream   = "START_STREAM"
	ActionStopStream    = "STOP_STREAM"
	ActionGetStats      = "GET_STATS"
	ActionAudioData     = "AUDIO_DATA"
	ActionGetPluginList = "GET_PLUGIN_LIST"
	ActionLoadPlugin    = "LOAD_PLUGIN"
	ActionUnloadPlugin  = "UNLOAD_PLUGIN"
	ActionProcessAudio  = "PROCESS_AUDIO"
	ActionSetParam      = "SET_PARAM"
	ActionGetParams     = "GET_PARAMS"
)

// Response actions. Each mirrors its triggering request, or a fixed
// companion name (PING yields PONG).
const (
	ActionPong           = "PONG"
	ActionConfig         = "CONFIG"
	ActionConfigSet      = "CONFIG_SET"
	ActionStreamStarted  = "STREAM_STARTED"
	ActionStreamStopped  = "STREAM_STOPPED"
	ActionStats          = "STATS"
	ActionAudioProcessed = "AUDIO_PROCESSED"
	ActionParamChanged   = "PARAM_CHANGED"
	ActionParams         = "PARAMS"
	ActionError          = "ERROR"
)

// Envelope is the minimal probe used to route an incoming message before
// decoding it into its action-specific type.
type Envelope struct {
	Action string `json:"action"`
}

// ConfigPayload mirrors audio.Config on the wire.
type ConfigPayload struct {
	SampleRate   int     `json:"sample_rate"`
	BlockSize    int     `json:"block_size"`
	Channels     int     `json:"channels"`
	BufferDepth  int     `json:"buffer_depth"`
	MaxLatencyMs float64 `json:"max_latency_ms"`
}

// SetConfigRequest updates stream configuration. Absent fields keep their
// current values.
type SetConfigRequest struct {
	Action       string   `json:"action"`
	SampleRate   *int     `json:"sample_rate,omitempty"`
	BlockSize    *int     `json:"block_size,omitempty"`
	Channels     *int     `json:"channels,omitempty"`
	BufferDepth  *int     `json:"buffer_depth,omitempty"`
	MaxLatencyMs *float64 `json:"max_latency_ms,omitempty"`
}

// ConfigResponse answers GET_CONFIG and SET_CONFIG.
type ConfigResponse struct {
	Action  string        `json:"action"`
	Success bool          `json:"success"`
	Error   string        `json:"error,omitempty"`
	Config  ConfigPayload `json:"config"`
}

// PongResponse answers PING. Timestamp is seconds since the Unix epoch.
type PongResponse struct {
	Action    string  `json:"action"`
	Timestamp float64 `json:"timestamp"`
}

// StartStreamResponse reports the outcome of START_STREAM.
type StartStreamResponse struct {
	Action    string  `json:"action"`
	Success   bool    `json:"success"`
	Error     string  `json:"error,omitempty"`
	LatencyMs float64 `json:"latency_ms,omitempty"`
}

// StopStreamResponse reports the outcome of STOP_STREAM.
type StopStreamResponse struct {
	Action  string `json:"action"`
	Success bool   `json:"success"`
}

// StreamStats is the stream portion of a STATS response.
type StreamStats struct {
	Running        bool    `json:"is_running"`
	State          string  `json:"state"`
	SampleRate     int     `json:"sample_rate"`
	BlockSize      int     `json:"block_size"`
	LatencyMs      float64 `json:"latency_ms"`
	InputLevel     float32 `json:"input_level"`
	OutputLevel    float32 `json:"output_level"`
	Underruns      uint64  `json:"buffer_underruns"`
	Overruns       uint64  `json:"buffer_overruns"`
	BlocksIn       uint64  `json:"blocks_in"`
	BlocksOut      uint64  `json:"blocks_out"`
	NetworkDrops   uint64  `json:"network_drops"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
	InputRing      int     `json:"input_buffer_size"`
	OutputRing     int     `json:"output_buffer_size"`
}

// StatsResponse answers GET_STATS with stream and engine snapshots. Engine
// is left as an opaque document so the payload tracks engine.Stats.
type StatsResponse struct {
	Action   string      `json:"action"`
	Stream   StreamStats `json:"stats"`
	Engine   interface{} `json:"engine,omitempty"`
	Sessions int         `json:"sessions"`
}

// AudioDataRequest carries base64-embedded audio for transports that cannot
// send binary frames. Channels and Samples describe the payload shape.
type AudioDataRequest struct {
	Action   string `json:"action"`
	Audio    string `json:"audio"`
	Channels int    `json:"channels"`
	Samples  int    `json:"samples"`
}

// PluginListResponse answers GET_PLUGIN_LIST.
type PluginListResponse struct {
	Action  string        `json:"action"`
	Plugins []PluginEntry `json:"plugins"`
}

// PluginEntry is one loadable plugin in a list response.
type PluginEntry struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Vendor   string `json:"vendor"`
	Category string `json:"category"`
	Path     string `json:"path"`
}

// LoadPluginRequest loads a plugin into a slot.
type LoadPluginRequest struct {
	Action     string `json:"action"`
	Path       string `json:"path"`
	SlotID     string `json:"slot_id"`
	SampleRate int    `json:"sample_rate,omitempty"`
}

// LoadPluginResponse reports the outcome of LOAD_PLUGIN.
type LoadPluginResponse struct {
	Action     string             `json:"action"`
	Success    bool               `json:"success"`
	Error      string             `json:"error,omitempty"`
	Name       string             `json:"name,omitempty"`
	SlotID     string             `json:"slot_id"`
	Parameters map[string]float64 `json:"parameters,omitempty"`
}

// UnloadPluginRequest unloads a slot's plugin.
type UnloadPluginRequest struct {
	Action string `json:"action"`
	SlotID string `json:"slot_id"`
}

// UnloadPluginResponse reports the outcome of UNLOAD_PLUGIN.
type UnloadPluginResponse struct {
	Action  string `json:"action"`
	Success bool   `json:"success"`
	SlotID  string `json:"slot_id"`
}

// ProcessAudioRequest runs one block through a slot. Channel data rides as
// JSON float arrays, matching what the web DAW sends.
type ProcessAudioRequest struct {
	Action     string      `json:"action"`
	SlotID     string      `json:"slot_id"`
	Channels   [][]float32 `json:"channels"`
	SampleRate int         `json:"sampleRate,omitempty"`
}

// ProcessAudioResponse carries the processed block back.
type ProcessAudioResponse struct {
	Action   string      `json:"action"`
	SlotID   string      `json:"slot_id"`
	Channels [][]float32 `json:"channels"`
}

// SetParamRequest changes one plugin parameter.
type SetParamRequest struct {
	Action string  `json:"action"`
	SlotID string  `json:"slot_id"`
	Name   string  `json:"name"`
	Value  float64 `json:"value"`
}

// ParamChangedResponse confirms a parameter change.
type ParamChangedResponse struct {
	Action  string  `json:"action"`
	Success bool    `json:"success"`
	Error   string  `json:"error,omitempty"`
	SlotID  string  `json:"slot_id"`
	Name    string  `json:"name"`
	Value   float64 `json:"value"`
}

// GetParamsRequest fetches all parameters of a slot's plugin.
type GetParamsRequest struct {
	Action string `json:"action"`
	SlotID string `json:"slot_id"`
}

// ParamsResponse answers GET_PARAMS.
type ParamsResponse struct {
	Action     string             `json:"action"`
	SlotID     string             `json:"slot_id"`
	Parameters map[string]float64 `json:"parameters"`
}

// ErrorResponse reports a request that could not be routed or decoded.
type ErrorResponse struct {
	Action  string `json:"action"`
	Success bool   `json:"success"`
	Error   string `json:"error"`
}
