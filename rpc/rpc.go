package rpc

import (
	"context"
	"errors"
	"net"
	"net/rpc"
	"time"

	"github.com/wfunc/nightfall/logger"
	"github.com/wfunc/nightfall/models"
	"github.com/wfunc/nightfall/services"
)

// ServiceName is the name the admin service is registered under.
const ServiceName = "Admin"

const callTimeout = 5 * time.Second

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	address  string
	rpc      *rpc.Server
}

// NewServer listens on addr and registers the admin service.
func NewServer(addr string, service *AdminService) (*Server, error) {
	rpcServer := rpc.NewServer()
	if err := rpcServer.RegisterName(ServiceName, service); err != nil {
		return nil, err
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  listener.Addr().String(),
		rpc:      rpcServer,
	}, nil
}

// Addr is the bound address.
func (s *Server) Addr() string {
	return s.address
}

// Start begins listening for RPC requests. It returns when the listener
// is closed.
func (s *Server) Start() error {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				logger.Log.Info("RPC server listener closed.")
				return nil
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			return err
		}
		go s.rpc.ServeConn(conn)
	}
}

// ServeConn serves a single connection, for in-process callers.
func (s *Server) ServeConn(conn net.Conn) {
	s.rpc.ServeConn(conn)
}

// Stop closes the RPC listener.
func (s *Server) Stop() error {
	logger.Log.Info("Stopping RPC server.")
	return s.listener.Close()
}

// AdminService exposes read-only session and ledger queries over net/rpc.
// Methods follow the net/rpc signature: exported args, pointer reply, error.
type AdminService struct {
	service *services.GameService
}

func NewAdminService(service *services.GameService) *AdminService {
	return &AdminService{service: service}
}

type ListSessionsArgs struct {
	// Phase filters the result when set.
	Phase models.Phase
}

type ListSessionsReply struct {
	Sessions []models.Snapshot
}

func (a *AdminService) ListSessions(args *ListSessionsArgs, reply *ListSessionsReply) error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	snaps, err := a.service.ListSessions(ctx)
	if err != nil {
		return err
	}
	for _, snap := range snaps {
		if args.Phase == "" || snap.Phase == args.Phase {
			reply.Sessions = append(reply.Sessions, snap)
		}
	}
	return nil
}

type GetSessionArgs struct {
	// Session is a session id or room code.
	Session string
}

type GetSessionReply struct {
	Snapshot models.Snapshot
}

func (a *AdminService) GetSession(args *GetSessionArgs, reply *GetSessionReply) error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	snap, err := a.service.GetPublicState(ctx, args.Session)
	if err != nil {
		return err
	}
	reply.Snapshot = snap
	return nil
}

type ParticipantArgs struct {
	ParticipantID string
	// Limit bounds the number of records; zero uses the default.
	Limit int
}

type ParticipantReply struct {
	Stats   models.ParticipantStats
	Records []models.GameRecord
}

// GetParticipant returns a participant's totals and recent games.
func (a *AdminService) GetParticipant(args *ParticipantArgs, reply *ParticipantReply) error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	stats, err := a.service.ParticipantStats(ctx, args.ParticipantID)
	if err != nil {
		return err
	}
	records, err := a.service.ParticipantHistory(ctx, args.ParticipantID, args.Limit)
	if err != nil {
		return err
	}
	reply.Stats = *stats
	reply.Records = records
	return nil
}
