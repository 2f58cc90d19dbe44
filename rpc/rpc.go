package rpc

import (
	"fmt"
	"net"
	"net/rpc"

	"github.com/wfunc/gamebot/broadcast"
	"github.com/wfunc/gamebot/game"
	"github.com/wfunc/gamebot/logger"
	"github.com/wfunc/gamebot/models"
	"github.com/wfunc/gamebot/services"
)

// Server manages the RPC listener. Each Server carries its own method
// table so several can coexist in one process.
type Server struct {
	listener net.Listener
	address  string
	rpcSrv   *rpc.Server
}

// NewServer registers the bot service and opens the listener.
func NewServer(addr string, service *BotService) (*Server, error) {
	rpcSrv := rpc.NewServer()
	if err := rpcSrv.RegisterName("BotService", service); err != nil {
		return nil, err
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{listener: listener, address: addr, rpcSrv: rpcSrv}, nil
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if _, ok := err.(*net.OpError); ok {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go s.rpcSrv.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// BotService exposes the admin surface over net/rpc.
type BotService struct {
	registry    *game.Registry
	broadcaster broadcast.Broadcaster
	records     *services.RecordService
}

// NewBotService wires the admin surface. records may be nil when
// persistence is disabled.
func NewBotService(registry *game.Registry, broadcaster broadcast.Broadcaster, records *services.RecordService) *BotService {
	return &BotService{registry: registry, broadcaster: broadcaster, records: records}
}

type ListRoomsArgs struct{}

type ListRoomsReply struct {
	HubIDs []string
}

func (bs *BotService) ListRooms(args *ListRoomsArgs, reply *ListRoomsReply) error {
	reply.HubIDs = bs.registry.HubIDs()
	return nil
}

type RoomStateArgs struct {
	HubID string
}

type RoomStateReply struct {
	HubID     string
	State     string
	GameID    string
	GameType  string
	Players   []string
	TurnIndex int
}

func (bs *BotService) RoomState(args *RoomStateArgs, reply *RoomStateReply) error {
	session, ok := bs.registry.Get(args.HubID)
	if !ok {
		return fmt.Errorf("room %s not connected", args.HubID)
	}
	reply.HubID = session.HubID()
	reply.State = session.State().String()
	reply.GameID = session.GameID()
	reply.GameType = session.GameType()
	reply.Players = session.Roster()
	reply.TurnIndex = session.TurnIndex()
	return nil
}

type AnnounceArgs struct {
	HubID string // empty for all rooms
	Text  string
}

type AnnounceReply struct {
	Rooms int
}

func (bs *BotService) Announce(args *AnnounceArgs, reply *AnnounceReply) error {
	if args.HubID != "" {
		if err := bs.broadcaster.ToRoom(args.HubID, args.Text); err != nil {
			return err
		}
		reply.Rooms = 1
		return nil
	}
	reply.Rooms = bs.broadcaster.ToAll(args.Text)
	return nil
}

type RoomStatsArgs struct {
	HubID string
}

type RoomStatsReply struct {
	Stats models.RoomStats
}

func (bs *BotService) RoomStats(args *RoomStatsArgs, reply *RoomStatsReply) error {
	if bs.records == nil {
		return fmt.Errorf("persistence disabled")
	}
	stats, err := bs.records.Stats(args.HubID)
	if err != nil {
		return err
	}
	reply.Stats = *stats
	return nil
}

type LastGameArgs struct {
	HubID string
}

type LastGameReply struct {
	Record models.GameRecord
}

func (bs *BotService) LastGame(args *LastGameArgs, reply *LastGameReply) error {
	if bs.records == nil {
		return fmt.Errorf("persistence disabled")
	}
	record, err := bs.records.LastGame(args.HubID)
	if err != nil {
		return err
	}
	reply.Record = *record
	return nil
}
