package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/wfunc/gamebot/bot"
	"github.com/wfunc/gamebot/broadcast"
	"github.com/wfunc/gamebot/config"
	"github.com/wfunc/gamebot/game"
	"github.com/wfunc/gamebot/logger"
	"github.com/wfunc/gamebot/monitor"
	"github.com/wfunc/gamebot/reticulum"
	gamebot_rpc "github.com/wfunc/gamebot/rpc"
	"github.com/wfunc/gamebot/services"
	"github.com/wfunc/gamebot/timer"
)

// GameServer owns the control plane: the HTTP surface that connects the
// bot to rooms, the per-room sessions, and the admin RPC server.
type GameServer struct {
	cfg       *config.Config
	registry  *game.Registry
	renderer  game.Renderer
	recorder  game.Recorder
	records   *services.RecordService
	mon       *monitor.Monitor
	timers    *timer.Manager
	rpcServer *gamebot_rpc.Server

	// dial and narrator are swappable for tests.
	dial     func(host, hubID string) (game.Channel, string, error)
	narrator func() game.Narrator

	mutex    sync.Mutex
	channels map[string]game.Channel
}

func NewGameServer(cfg *config.Config, renderer game.Renderer, records *services.RecordService, mon *monitor.Monitor) *GameServer {
	s := &GameServer{
		cfg:      cfg,
		registry: game.NewRegistry(),
		renderer: renderer,
		records:  records,
		mon:      mon,
		timers:   timer.NewManager(),
		channels: make(map[string]game.Channel),
	}
	if records != nil {
		s.recorder = records
	}
	s.dial = s.dialReticulum
	s.narrator = func() game.Narrator {
		return bot.New(bot.Config{
			APIKey:       cfg.OpenAI.APIKey,
			Organization: cfg.OpenAI.Organization,
			Model:        cfg.OpenAI.Model,
			Temperature:  cfg.OpenAI.Temperature,
			MaxTokens:    cfg.OpenAI.MaxTokens,
		})
	}

	broadcaster := broadcast.NewRoomBroadcaster(s.registry)
	rpcServer, err := gamebot_rpc.NewServer(cfg.Server.RPCAddress,
		gamebot_rpc.NewBotService(s.registry, broadcaster, records))
	if err != nil {
		logger.Log.Fatalf("Failed to create RPC server: %v", err)
	}
	s.rpcServer = rpcServer

	return s
}

// Start serves the HTTP surface. Blocks until the listener fails.
func (s *GameServer) Start() error {
	go s.rpcServer.Start()

	mux := http.NewServeMux()
	mux.HandleFunc("/connect", s.handleConnect)
	mux.HandleFunc("/rooms", s.handleRooms)

	logger.Log.Infof("HTTP server listening on %s", s.cfg.Server.HTTPAddress)
	return http.ListenAndServe(s.cfg.Server.HTTPAddress, mux)
}

// Stop tears down the RPC listener and every connected room.
func (s *GameServer) Stop() {
	s.rpcServer.Stop()
	for _, session := range s.registry.All() {
		session.Disconnect()
	}
}

func (s *GameServer) dialReticulum(host, hubID string) (game.Channel, string, error) {
	client := reticulum.NewClient(host)
	channel, err := client.ChannelForHub(hubID, game.BotName)
	if err != nil {
		return nil, "", err
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Game.JoinTimeout())
	defer cancel()
	sessionID, err := channel.Join(ctx, s)
	if err != nil {
		channel.Close()
		return nil, "", err
	}
	return &channelAdapter{channel}, sessionID, nil
}

// channelAdapter narrows *reticulum.Channel to the session's view.
type channelAdapter struct {
	*reticulum.Channel
}

func (a *channelAdapter) SendCommand(from string, body game.Command) error {
	return a.Channel.SendCommand(from, body)
}

// handleConnect attaches the bot to a room. Rejects when params are
// missing, the room is already connected, or the channel join fails.
func (s *GameServer) handleConnect(w http.ResponseWriter, r *http.Request) {
	host := r.URL.Query().Get("host")
	hubID := r.URL.Query().Get("hub_id")
	if host == "" || hubID == "" {
		http.Error(w, "Missing host or hub_id", http.StatusInternalServerError)
		return
	}
	if port := r.URL.Query().Get("port"); port != "" {
		host = net.JoinHostPort(host, port)
	}
	if s.registry.Has(hubID) {
		http.Error(w, "Already connected to hub "+hubID, http.StatusInternalServerError)
		return
	}

	channel, sessionID, err := s.dial(host, hubID)
	if err != nil {
		logger.Log.Errorf("Room %s: connect failed: %v", hubID, err)
		http.Error(w, "Failed to connect: "+err.Error(), http.StatusInternalServerError)
		return
	}

	session := game.NewSession(game.SessionConfig{
		HubID:     hubID,
		SessionID: sessionID,
		Channel:   channel,
		Narrator:  s.narrator(),
		Renderer:  s.renderer,
		Recorder:  s.recorder,
		Timers:    s.timers,
		Monitor:   s.mon,
		Debounce:  s.cfg.Game.Debounce(),
	})

	s.mutex.Lock()
	s.channels[hubID] = channel
	s.mutex.Unlock()
	s.registry.Add(session)
	s.mon.SetActiveSessions(s.registry.Len())

	session.Connect()
	logger.Log.Infof("Room %s: connected as %s", hubID, sessionID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"hub_id": hubID, "session_id": sessionID})
}

// handleRooms lists the connected hub IDs.
func (s *GameServer) handleRooms(w http.ResponseWriter, r *http.Request) {
	hubIDs := s.registry.HubIDs()
	if hubIDs == nil {
		hubIDs = []string{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(hubIDs)
}

func (s *GameServer) session(hubID string) (*game.Session, bool) {
	return s.registry.Get(hubID)
}

func (s *GameServer) channel(hubID string) (game.Channel, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	channel, ok := s.channels[hubID]
	return channel, ok
}

// HandleConnect fires while the channel join is still in flight; the
// session is registered once the join returns.
func (s *GameServer) HandleConnect(hubID, sessionID string) {
	logger.Log.Infof("Room %s: channel joined as %s", hubID, sessionID)
}

// HandleDisconnect drops the room when its socket dies.
func (s *GameServer) HandleDisconnect(hubID string) {
	session, ok := s.session(hubID)
	if !ok {
		return
	}
	logger.Log.Warnf("Room %s: channel disconnected", hubID)
	session.Disconnect()
	s.registry.Remove(hubID)
	s.mutex.Lock()
	delete(s.channels, hubID)
	s.mutex.Unlock()
	s.mon.SetActiveSessions(s.registry.Len())
}

// HandleJoin admits participants who arrive directly in the room.
// Lobby presences spectate until they enter the room proper.
func (s *GameServer) HandleJoin(hubID, sessionID, displayName, presence string) {
	session, ok := s.session(hubID)
	if !ok || presence != "room" {
		return
	}
	session.Join(sessionID)
}

// HandleMoved admits participants who move from the lobby into the room.
func (s *GameServer) HandleMoved(hubID, sessionID, presence, previousPresence string) {
	session, ok := s.session(hubID)
	if !ok || presence != "room" {
		return
	}
	session.Join(sessionID)
}

func (s *GameServer) HandleLeave(hubID, sessionID string) {
	session, ok := s.session(hubID)
	if !ok {
		return
	}
	session.Leave(sessionID)
}

// HandleMessage routes game commands from the room. The bot's own
// messages echo back on the channel and are dropped here.
func (s *GameServer) HandleMessage(hubID, senderID string, body reticulum.InboundCommand) {
	session, ok := s.session(hubID)
	if !ok || senderID == session.SessionID() {
		return
	}
	if body.Command != "game" || len(body.Args) == 0 {
		return
	}
	s.mon.IncCommandsReceived()

	switch body.Args[0] {
	case "start":
		gameType := ""
		if len(body.Args) > 1 {
			gameType = body.Args[1]
		}
		channel, ok := s.channel(hubID)
		if !ok {
			return
		}
		session.Start(gameType, channel.Users(session.SessionID()))
	case "option":
		if len(body.Args) > 1 {
			session.Option(senderID, body.Args[1])
		}
	case "end":
		session.End()
	case "msg":
		session.Msg(senderID, strings.Join(body.Args[1:], " "))
	default:
		logger.Log.Debugf("Room %s: unknown game command %q", hubID, body.Args[0])
	}
}
