// ABOUTME: Control message handlers for the bridge protocol
// ABOUTME: Routes JSON actions and binary audio frames from sessions
package bridge

import (
	"encoding/json"
	"log"
	"time"

	"github.com/novastudio/novabridge-go/internal/audio"
	"github.com/novastudio/novabridge-go/internal/engine"
	"github.com/novastudio/novabridge-go/internal/protocol"
)

// handleBinaryFrame decodes an inbound audio frame and queues it for
// playback. A full output ring drops the frame; the hardware clock decides
// the pace, not the network.
func (s *Server) handleBinaryFrame(session *Session, data []byte) {
	chs, err := protocol.DecodeFrame(data)
	if err != nil {
		log.Printf("Dropping malformed audio frame from %s: %v", session.ID, err)
		return
	}

	s.queuePlayback(session, chs)
}

// queuePlayback pushes a decoded block onto the output ring.
func (s *Server) queuePlayback(session *Session, chs [][]float32) {
	s.streamMu.Lock()
	ring := s.outRing
	s.streamMu.Unlock()

	if ring == nil {
		return
	}
	if !ring.Write(chs) {
		s.netDrops.Add(1)
		if s.config.Debug {
			log.Printf("[DEBUG] Output ring full, dropping block from %s", session.ID)
		}
	}
}

// handleSessionMessage routes a JSON control message by its action field.
func (s *Server) handleSessionMessage(session *Session, data []byte) {
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Printf("Error unmarshaling message from %s: %v", session.ID, err)
		s.sendError(session, "invalid JSON")
		return
	}

	if s.config.Debug && env.Action != protocol.ActionPing {
		log.Printf("[DEBUG] Session %s: %s", session.ID, env.Action)
	}

	switch env.Action {
	case protocol.ActionPing:
		s.handlePing(session)
	case protocol.ActionGetConfig:
		s.handleGetConfig(session)
	case protocol.ActionSetConfig:
		s.handleSetConfig(session, data)
	case protocol.ActionStartStream:
		s.handleStartStream(session)
	case protocol.ActionStopStream:
		s.handleStopStream(session)
	case protocol.ActionGetStats:
		s.handleGetStats(session)
	case protocol.ActionAudioData:
		s.handleAudioData(session, data)
	case protocol.ActionGetPluginList:
		s.handleGetPluginList(session)
	case protocol.ActionLoadPlugin:
		s.handleLoadPlugin(session, data)
	case protocol.ActionUnloadPlugin:
		s.handleUnloadPlugin(session, data)
	case protocol.ActionProcessAudio:
		s.handleProcessAudio(session, data)
	case protocol.ActionSetParam:
		s.handleSetParam(session, data)
	case protocol.ActionGetParams:
		s.handleGetParams(session, data)
	default:
		log.Printf("Unknown action from %s: %s", session.ID, env.Action)
		s.sendError(session, "unknown action: "+env.Action)
	}
}

func (s *Server) sendError(session *Session, message string) {
	s.send(session, protocol.ErrorResponse{
		Action:  protocol.ActionError,
		Success: false,
		Error:   message,
	})
}

func (s *Server) handlePing(session *Session) {
	s.send(session, protocol.PongResponse{
		Action:    protocol.ActionPong,
		Timestamp: float64(time.Now().UnixNano()) / 1e9,
	})
}

func (s *Server) handleGetConfig(session *Session) {
	cfg := s.currentConfig()
	s.send(session, protocol.ConfigResponse{
		Action:  protocol.ActionConfig,
		Success: true,
		Config:  configPayload(cfg),
	})
}

// handleSetConfig applies a partial configuration update. Rejected while
// the stream runs; ring shapes are fixed at start.
func (s *Server) handleSetConfig(session *Session, data []byte) {
	var req protocol.SetConfigRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendError(session, "invalid SET_CONFIG payload")
		return
	}

	if s.streamRunning() {
		s.send(session, protocol.ConfigResponse{
			Action: protocol.ActionConfigSet,
			Error:  "cannot change configuration while stream is running",
			Config: configPayload(s.currentConfig()),
		})
		return
	}

	s.audioCfgMu.Lock()
	next := s.audioCfg
	if req.SampleRate != nil {
		next.SampleRate = *req.SampleRate
	}
	if req.BlockSize != nil {
		next.BlockSize = *req.BlockSize
	}
	if req.Channels != nil {
		next.Channels = *req.Channels
	}
	if req.BufferDepth != nil {
		next.BufferDepth = *req.BufferDepth
	}
	if req.MaxLatencyMs != nil {
		next.MaxLatencyMs = *req.MaxLatencyMs
	}

	if err := next.Validate(); err != nil {
		s.audioCfgMu.Unlock()
		s.send(session, protocol.ConfigResponse{
			Action: protocol.ActionConfigSet,
			Error:  err.Error(),
			Config: configPayload(s.currentConfig()),
		})
		return
	}

	s.audioCfg = next
	s.audioCfgMu.Unlock()

	log.Printf("Configuration updated: %d Hz, %d frames, %d channels",
		next.SampleRate, next.BlockSize, next.Channels)

	s.send(session, protocol.ConfigResponse{
		Action:  protocol.ActionConfigSet,
		Success: true,
		Config:  configPayload(next),
	})
}

func (s *Server) handleStartStream(session *Session) {
	latency, err := s.startStream()
	if err != nil {
		log.Printf("Failed to start stream: %v", err)
		s.send(session, protocol.StartStreamResponse{
			Action: protocol.ActionStreamStarted,
			Error:  err.Error(),
		})
		return
	}

	s.updateTUI()
	s.send(session, protocol.StartStreamResponse{
		Action:    protocol.ActionStreamStarted,
		Success:   true,
		LatencyMs: latency,
	})
}

func (s *Server) handleStopStream(session *Session) {
	s.stopStream()
	s.updateTUI()
	s.send(session, protocol.StopStreamResponse{
		Action:  protocol.ActionStreamStopped,
		Success: true,
	})
}

func (s *Server) handleGetStats(session *Session) {
	s.send(session, protocol.StatsResponse{
		Action:   protocol.ActionStats,
		Stream:   s.streamStats(),
		Engine:   s.engine.Stats(),
		Sessions: s.sessionCount(),
	})
}

// handleAudioData accepts base64 audio for clients that cannot send binary
// frames. Same playback path as handleBinaryFrame, no response.
func (s *Server) handleAudioData(session *Session, data []byte) {
	var req protocol.AudioDataRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendError(session, "invalid AUDIO_DATA payload")
		return
	}

	chs, err := protocol.DecodeBase64(req.Audio, req.Samples, req.Channels)
	if err != nil {
		log.Printf("Dropping malformed AUDIO_DATA from %s: %v", session.ID, err)
		return
	}

	s.queuePlayback(session, chs)
}

func (s *Server) handleGetPluginList(session *Session) {
	infos := s.loader.List()
	entries := make([]protocol.PluginEntry, len(infos))
	for i, info := range infos {
		entries[i] = protocol.PluginEntry{
			ID:       i,
			Name:     info.Name,
			Vendor:   info.Vendor,
			Category: info.Category,
			Path:     info.Path,
		}
	}

	s.send(session, protocol.PluginListResponse{
		Action:  protocol.ActionGetPluginList,
		Plugins: entries,
	})
}

func (s *Server) handleLoadPlugin(session *Session, data []byte) {
	var req protocol.LoadPluginRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendError(session, "invalid LOAD_PLUGIN payload")
		return
	}
	if req.SlotID == "" {
		s.sendError(session, "LOAD_PLUGIN requires slot_id")
		return
	}

	cfg := s.currentConfig()
	sampleRate := cfg.SampleRate
	if req.SampleRate > 0 {
		sampleRate = req.SampleRate
	}

	host, info, err := s.loader.Load(req.Path, sampleRate)
	if err != nil {
		s.send(session, protocol.LoadPluginResponse{
			Action: protocol.ActionLoadPlugin,
			Error:  err.Error(),
			SlotID: req.SlotID,
		})
		return
	}

	key := engineKey(session.ID, req.SlotID)
	if !s.engine.AddSlot(key, host, cfg) {
		s.loader.Unload(host)
		s.send(session, protocol.LoadPluginResponse{
			Action: protocol.ActionLoadPlugin,
			Error:  "plugin instance limit reached",
			SlotID: req.SlotID,
		})
		return
	}

	if lr, ok := host.(engine.LatencyReporter); ok {
		s.comp.SetLatency(key, lr.LatencySamples())
	} else {
		s.comp.SetLatency(key, 0)
	}

	session.mu.Lock()
	if old, exists := session.slots[req.SlotID]; exists {
		s.loader.Unload(old)
	}
	session.slots[req.SlotID] = host
	session.mu.Unlock()

	log.Printf("Loaded plugin %q into slot %s", info.Name, key)
	s.updateTUI()

	s.send(session, protocol.LoadPluginResponse{
		Action:     protocol.ActionLoadPlugin,
		Success:    true,
		Name:       info.Name,
		SlotID:     req.SlotID,
		Parameters: hostParams(host),
	})
}

func (s *Server) handleUnloadPlugin(session *Session, data []byte) {
	var req protocol.UnloadPluginRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendError(session, "invalid UNLOAD_PLUGIN payload")
		return
	}

	key := engineKey(session.ID, req.SlotID)
	s.engine.RemoveSlot(key)
	s.comp.Remove(key)

	session.mu.Lock()
	host, exists := session.slots[req.SlotID]
	delete(session.slots, req.SlotID)
	session.mu.Unlock()

	if exists {
		if err := s.loader.Unload(host); err != nil {
			log.Printf("Error unloading plugin in slot %s: %v", key, err)
		}
		log.Printf("Unloaded slot %s", key)
	}
	s.updateTUI()

	s.send(session, protocol.UnloadPluginResponse{
		Action:  protocol.ActionUnloadPlugin,
		Success: true,
		SlotID:  req.SlotID,
	})
}

// handleProcessAudio runs one block through the session's slot, then pads
// for chain alignment. Unknown slots pass audio through unchanged.
func (s *Server) handleProcessAudio(session *Session, data []byte) {
	var req protocol.ProcessAudioRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendError(session, "invalid PROCESS_AUDIO payload")
		return
	}
	if len(req.Channels) == 0 {
		s.sendError(session, "PROCESS_AUDIO requires channel data")
		return
	}

	key := engineKey(session.ID, req.SlotID)
	out := s.engine.Process(key, req.Channels)
	out = s.comp.Compensate(key, out)

	s.send(session, protocol.ProcessAudioResponse{
		Action:   protocol.ActionAudioProcessed,
		SlotID:   req.SlotID,
		Channels: out,
	})
}

func (s *Server) handleSetParam(session *Session, data []byte) {
	var req protocol.SetParamRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendError(session, "invalid SET_PARAM payload")
		return
	}

	session.mu.RLock()
	host, exists := session.slots[req.SlotID]
	session.mu.RUnlock()

	resp := protocol.ParamChangedResponse{
		Action: protocol.ActionParamChanged,
		SlotID: req.SlotID,
		Name:   req.Name,
		Value:  req.Value,
	}

	ph, ok := host.(engine.ParamHost)
	switch {
	case !exists:
		resp.Error = "no plugin loaded in slot " + req.SlotID
	case !ok:
		resp.Error = "plugin has no parameters"
	default:
		if err := ph.SetParameter(req.Name, req.Value); err != nil {
			resp.Error = err.Error()
		} else {
			resp.Success = true
		}
	}

	s.send(session, resp)
}

func (s *Server) handleGetParams(session *Session, data []byte) {
	var req protocol.GetParamsRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendError(session, "invalid GET_PARAMS payload")
		return
	}

	session.mu.RLock()
	host := session.slots[req.SlotID]
	session.mu.RUnlock()

	s.send(session, protocol.ParamsResponse{
		Action:     protocol.ActionParams,
		SlotID:     req.SlotID,
		Parameters: hostParams(host),
	})
}

// hostParams returns a host's parameter map, or an empty map when the host
// is nil or exposes none.
func hostParams(host engine.Host) map[string]float64 {
	if ph, ok := host.(engine.ParamHost); ok {
		return ph.Parameters()
	}
	return map[string]float64{}
}

func configPayload(cfg audio.Config) protocol.ConfigPayload {
	return protocol.ConfigPayload{
		SampleRate:   cfg.SampleRate,
		BlockSize:    cfg.BlockSize,
		Channels:     cfg.Channels,
		BufferDepth:  cfg.BufferDepth,
		MaxLatencyMs: cfg.MaxLatencyMs,
	}
}
