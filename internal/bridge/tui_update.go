// ABOUTME: TUI update helpers for the bridge
// ABOUTME: Snapshots server state into TUI status messages
package bridge

import "time"

// updateTUI sends current bridge state to the TUI.
func (s *Server) updateTUI() {
	if s.tui == nil {
		return
	}

	s.sessionsMu.RLock()
	sessions := make([]SessionInfo, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, SessionInfo{
			ID:         session.ID,
			RemoteAddr: session.RemoteAddr,
			Connected:  session.Connected,
		})
	}
	s.sessionsMu.RUnlock()

	st := s.stream.Stats()
	engineStats := s.engine.Stats()

	s.tui.Update(BridgeStatus{
		Name:        s.config.Name,
		Port:        s.config.Port,
		StreamState: st.State,
		SampleRate:  st.SampleRate,
		BlockSize:   st.BlockSize,
		LatencyMs:   st.LatencyMs,
		InputLevel:  st.InputLevel,
		OutputLevel: st.OutputLevel,
		Underruns:   st.Underruns,
		Overruns:    st.Overruns,
		Slots:       engineStats.Instances,
		Sessions:    sessions,
	})
}

// tuiRefreshLoop pushes level and counter updates while the bridge runs.
// Event-driven updates alone would leave the meters frozen between actions.
func (s *Server) tuiRefreshLoop() {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.updateTUI()
		}
	}
}
