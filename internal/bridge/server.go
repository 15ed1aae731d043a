// ABOUTME: WebSocket bridge server connecting browser sessions to native audio
// ABOUTME: Manages sessions, the duplex stream, and the plugin engine
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/novastudio/novabridge-go/internal/audio"
	"github.com/novastudio/novabridge-go/internal/device"
	"github.com/novastudio/novabridge-go/internal/discovery"
	"github.com/novastudio/novabridge-go/internal/engine"
	"github.com/novastudio/novabridge-go/internal/protocol"
)

// Config holds bridge server configuration.
type Config struct {
	Port         int
	Name         string
	EnableMDNS   bool
	Debug        bool
	UseTUI       bool
	MaxInstances int
}

// Server is the bridge. One duplex hardware stream and one plugin engine
// are shared by every connected session.
type Server struct {
	config   Config
	serverID string

	upgrader websocket.Upgrader

	httpServer *http.Server
	mux        *http.ServeMux

	// Session management
	sessions   map[string]*Session
	sessionsMu sync.RWMutex

	// Audio configuration, mutable only while the stream is stopped
	audioCfg   audio.Config
	audioCfgMu sync.RWMutex

	// Stream state, guarded by streamMu
	streamMu   sync.Mutex
	inRing     *audio.Ring
	outRing    *audio.Ring
	stream     *device.DuplexStream
	pump       *Pump
	pumpCancel context.CancelFunc
	pumpDone   chan struct{}

	// Plugin processing
	engine *engine.Engine
	comp   *engine.Compensator
	loader engine.Loader

	// mDNS discovery
	mdnsManager *discovery.Manager

	// TUI
	tui       *BridgeTUI
	startTime time.Time

	// Blocks from the network dropped because the playback ring was full
	netDrops atomic.Uint64

	// Control
	stopChan   chan struct{}
	stopOnce   sync.Once
	shutdownMu sync.RWMutex
	isShutdown bool
	wg         sync.WaitGroup
}

// Session is one connected websocket peer.
type Session struct {
	ID         string
	Conn       *websocket.Conn
	RemoteAddr string
	Connected  time.Time

	// Slots this session loaded, local slot ID to host. Used to tear the
	// session's plugins down on disconnect.
	slots map[string]engine.Host

	// Output channel for messages
	sendChan chan interface{}

	mu sync.RWMutex
}

// New creates a bridge server with the default audio configuration.
func New(config Config) *Server {
	mux := http.NewServeMux()

	return &Server{
		config:   config,
		serverID: uuid.New().String(),
		mux:      mux,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// The bridge serves a local DAW session on a trusted
				// machine; browser origins vary by dev setup.
				return true
			},
		},
		sessions:  make(map[string]*Session),
		audioCfg:  audio.DefaultConfig(),
		stream:    device.New(),
		engine:    engine.New(config.MaxInstances),
		comp:      engine.NewCompensator(),
		loader:    engine.NewBuiltinLoader(),
		startTime: time.Now(),
		stopChan:  make(chan struct{}),
	}
}

// Start runs the server until Stop is called or the HTTP listener fails.
func (s *Server) Start() error {
	if s.config.UseTUI {
		s.tui = NewBridgeTUI()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.tui.Start(s.config.Name, s.config.Port)
		}()

		// Give TUI time to initialize
		time.Sleep(100 * time.Millisecond)

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.tuiRefreshLoop()
		}()
	}

	log.Printf("Bridge starting: %s (ID: %s)", s.config.Name, s.serverID)

	if s.config.EnableMDNS {
		s.mdnsManager = discovery.NewManager(discovery.Config{
			ServiceName: s.config.Name,
			Port:        s.config.Port,
		})

		if err := s.mdnsManager.Advertise(); err != nil {
			log.Printf("Failed to start mDNS advertisement: %v", err)
		} else {
			log.Printf("mDNS advertisement started")
		}
	}

	s.mux.HandleFunc("/ws", s.handleWebSocket)

	addr := fmt.Sprintf(":%d", s.config.Port)
	log.Printf("WebSocket server listening on %s", addr)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.mux,
	}

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	var serverErr error
	var tuiQuitChan <-chan struct{}
	if s.tui != nil {
		tuiQuitChan = s.tui.QuitChan()
	}

	select {
	case <-s.stopChan:
		log.Printf("Bridge shutting down...")
	case <-tuiQuitChan:
		log.Printf("TUI quit requested, shutting down...")
	case err := <-errChan:
		log.Printf("HTTP server error: %v", err)
		serverErr = err
	}

	// Release everything waiting on stopChan regardless of which path
	// triggered the shutdown
	s.Stop()

	// Reject new connections during teardown
	s.shutdownMu.Lock()
	s.isShutdown = true
	s.shutdownMu.Unlock()

	if s.tui != nil {
		s.tui.Stop()
	}

	s.stopStream()
	s.engine.Stop()
	s.closeAllSessions()

	if s.mdnsManager != nil {
		s.mdnsManager.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	s.wg.Wait()
	log.Printf("Bridge stopped cleanly")

	if serverErr != nil {
		return fmt.Errorf("HTTP server failed: %w", serverErr)
	}
	return nil
}

// Stop signals the server to shut down.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

// handleWebSocket upgrades and hands the connection to the session loop.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	log.Printf("New WebSocket connection from %s", r.RemoteAddr)

	s.handleConnection(conn, r.RemoteAddr)
}

// handleConnection manages one session from accept to teardown. There is
// no handshake; the web client starts sending actions immediately.
func (s *Server) handleConnection(conn *websocket.Conn, remoteAddr string) {
	defer conn.Close()

	s.shutdownMu.RLock()
	if s.isShutdown {
		s.shutdownMu.RUnlock()
		log.Printf("Rejecting connection during shutdown")
		return
	}
	s.shutdownMu.RUnlock()

	session := &Session{
		ID:         uuid.New().String(),
		Conn:       conn,
		RemoteAddr: remoteAddr,
		Connected:  time.Now(),
		slots:      make(map[string]engine.Host),
		sendChan:   make(chan interface{}, 100),
	}

	s.sessionsMu.Lock()
	s.sessions[session.ID] = session
	s.sessionsMu.Unlock()

	log.Printf("Session connected: %s (%s)", session.ID, remoteAddr)
	s.updateTUI()

	defer func() {
		s.sessionsMu.Lock()
		delete(s.sessions, session.ID)
		s.sessionsMu.Unlock()
		close(session.sendChan)

		s.unloadSessionSlots(session)

		log.Printf("Session disconnected: %s", session.ID)
		s.updateTUI()
	}()

	// Start writer goroutine
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.sessionWriter(session)
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		switch msgType {
		case websocket.BinaryMessage:
			s.handleBinaryFrame(session, data)
		case websocket.TextMessage:
			s.handleSessionMessage(session, data)
		}
	}
}

// sessionWriter drains a session's send channel onto the wire.
func (s *Server) sessionWriter(session *Session) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	const writeDeadline = 10 * time.Second

	for {
		select {
		case msg, ok := <-session.sendChan:
			if !ok {
				return
			}

			switch v := msg.(type) {
			case []byte:
				session.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
				if err := session.Conn.WriteMessage(websocket.BinaryMessage, v); err != nil {
					log.Printf("Error writing binary message: %v", err)
					return
				}
			default:
				data, err := json.Marshal(v)
				if err != nil {
					log.Printf("Error marshaling message: %v", err)
					continue
				}
				session.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
				if err := session.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
					log.Printf("Error writing text message: %v", err)
					return
				}
			}

		case <-ticker.C:
			if err := session.Conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
				return
			}
		}
	}
}

// send queues a JSON message for a session without blocking.
func (s *Server) send(session *Session, msg interface{}) {
	select {
	case session.sendChan <- msg:
	default:
		log.Printf("Session %s send buffer full, dropping message", session.ID)
	}
}

// broadcastFrame fans a binary audio frame out to every session. Sessions
// with a full send buffer miss the frame rather than stall the pump.
func (s *Server) broadcastFrame(frame []byte) {
	s.sessionsMu.RLock()
	defer s.sessionsMu.RUnlock()

	for _, session := range s.sessions {
		select {
		case session.sendChan <- frame:
		default:
		}
	}
}

// closeAllSessions force-closes every websocket. Upgraded connections are
// hijacked, so the HTTP server's graceful shutdown never reaches them; the
// close unblocks each session's read loop, which runs its own teardown.
func (s *Server) closeAllSessions() {
	s.sessionsMu.RLock()
	conns := make([]*websocket.Conn, 0, len(s.sessions))
	for _, session := range s.sessions {
		conns = append(conns, session.Conn)
	}
	s.sessionsMu.RUnlock()

	for _, conn := range conns {
		conn.Close()
	}
}

// sessionCount returns the number of connected sessions.
func (s *Server) sessionCount() int {
	s.sessionsMu.RLock()
	defer s.sessionsMu.RUnlock()
	return len(s.sessions)
}

// currentConfig returns a copy of the active audio configuration.
func (s *Server) currentConfig() audio.Config {
	s.audioCfgMu.RLock()
	defer s.audioCfgMu.RUnlock()
	return s.audioCfg
}

// engineKey namespaces a session-local slot ID inside the shared engine.
func engineKey(sessionID, slotID string) string {
	return sessionID + "_" + slotID
}

// unloadSessionSlots removes every plugin a departing session loaded.
func (s *Server) unloadSessionSlots(session *Session) {
	session.mu.Lock()
	slots := session.slots
	session.slots = make(map[string]engine.Host)
	session.mu.Unlock()

	for slotID, host := range slots {
		key := engineKey(session.ID, slotID)
		s.engine.RemoveSlot(key)
		s.comp.Remove(key)
		if err := s.loader.Unload(host); err != nil {
			log.Printf("Error unloading plugin in slot %s: %v", key, err)
		}
	}
	if len(slots) > 0 {
		log.Printf("Unloaded %d slot(s) for session %s", len(slots), session.ID)
	}
}

// startStream brings the duplex hardware stream up with the current
// configuration. Idempotent while running.
func (s *Server) startStream() (float64, error) {
	s.streamMu.Lock()
	defer s.streamMu.Unlock()

	if s.stream.State() == device.StateRunning {
		return s.stream.Stats().LatencyMs, nil
	}

	cfg := s.currentConfig()
	if err := cfg.Validate(); err != nil {
		return 0, err
	}

	s.inRing = audio.NewRing(cfg.BufferDepth, cfg.Channels, cfg.BlockSize)
	s.outRing = audio.NewRing(cfg.BufferDepth, cfg.Channels, cfg.BlockSize)

	if err := s.stream.Start(cfg, s.inRing, s.outRing); err != nil {
		s.inRing = nil
		s.outRing = nil
		return 0, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.pump = NewPump(s.inRing, s.broadcastFrame)
	s.pumpCancel = cancel
	s.pumpDone = make(chan struct{})

	s.wg.Add(1)
	go func(p *Pump, done chan struct{}) {
		defer s.wg.Done()
		defer close(done)
		p.Run(ctx)
	}(s.pump, s.pumpDone)

	stats := s.stream.Stats()
	log.Printf("Stream started: %d Hz, %d frames, %d channels (latency %.1f ms)",
		cfg.SampleRate, cfg.BlockSize, cfg.Channels, stats.LatencyMs)
	return stats.LatencyMs, nil
}

// stopStream tears the stream down. Safe to call when already stopped.
func (s *Server) stopStream() {
	s.streamMu.Lock()
	defer s.streamMu.Unlock()

	if s.pumpCancel != nil {
		s.pumpCancel()
		<-s.pumpDone
		s.pumpCancel = nil
		s.pumpDone = nil
		s.pump = nil
	}

	if s.stream.State() != device.StateStopped {
		s.stream.Stop()
		log.Printf("Stream stopped")
	}
}

// streamRunning reports whether the hardware stream is active.
func (s *Server) streamRunning() bool {
	return s.stream.State() == device.StateRunning
}

// streamStats composes the stream half of a stats response.
func (s *Server) streamStats() protocol.StreamStats {
	st := s.stream.Stats()

	stats := protocol.StreamStats{
		Running:        st.Running,
		State:          st.State,
		SampleRate:     st.SampleRate,
		BlockSize:      st.BlockSize,
		LatencyMs:      st.LatencyMs,
		InputLevel:     st.InputLevel,
		OutputLevel:    st.OutputLevel,
		Underruns:      st.Underruns,
		Overruns:       st.Overruns,
		BlocksIn:       st.BlocksIn,
		BlocksOut:      st.BlocksOut,
		NetworkDrops:   s.netDrops.Load(),
		ElapsedSeconds: st.Elapsed.Seconds(),
	}

	s.streamMu.Lock()
	if s.inRing != nil {
		stats.InputRing = s.inRing.Available()
	}
	if s.outRing != nil {
		stats.OutputRing = s.outRing.Available()
	}
	s.streamMu.Unlock()

	return stats
}
