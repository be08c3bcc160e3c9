package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wfunc/nightfall/apperr"
	"github.com/wfunc/nightfall/config"
	"github.com/wfunc/nightfall/logger"
	"github.com/wfunc/nightfall/monitor"
	"github.com/wfunc/nightfall/network"
	"github.com/wfunc/nightfall/services"
	"github.com/wfunc/nightfall/session"
)

// 客户端心跳间隔, 两个间隔内无消息则断开
const heartbeatInterval = 30 * time.Second

type GameServer struct {
	cfg            config.ServerConfig
	service        *services.GameService
	sessionManager *session.Manager
	metrics        *monitor.Monitor
	upgrader       websocket.Upgrader
	httpServer     *http.Server
	heartbeat      time.Duration
}

func NewGameServer(cfg config.ServerConfig, service *services.GameService, sessions *session.Manager, metrics *monitor.Monitor) *GameServer {
	s := &GameServer{
		cfg:            cfg,
		service:        service,
		sessionManager: sessions,
		metrics:        metrics,
		heartbeat:      heartbeatInterval,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}
	s.httpServer = &http.Server{
		Addr:              cfg.HTTPAddress,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Routes builds the REST and websocket router.
func (s *GameServer) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/ws", s.handleWebSocket)

	r.Group(func(r chi.Router) {
		if s.cfg.RequestTimeout > 0 {
			r.Use(middleware.Timeout(s.cfg.RequestTimeout))
		}
		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", s.listSessions)
			r.Post("/", s.createSession)
			r.Route("/{sessionID}", func(r chi.Router) {
				r.Get("/", s.getSession)
				r.Get("/qr.png", s.sessionQR)
				r.Post("/join", s.joinSession)
				r.Post("/ready", s.signalReady)
				r.Post("/night-actions", s.submitNightAction)
				r.Post("/task-answers", s.submitTaskAnswer)
				r.Post("/votes", s.submitVote)
			})
		})
		r.Get("/participants/{participantID}/stats", s.participantStats)
		r.Get("/participants/{participantID}/history", s.participantHistory)
	})
	return r
}

// Start serves HTTP until Shutdown is called.
func (s *GameServer) Start() error {
	logger.Log.Infof("Game server listening on %s", s.cfg.HTTPAddress)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *GameServer) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(r.Context(), conn)
}

func (s *GameServer) handleConnection(ctx context.Context, conn *websocket.Conn) {
	wsConn := network.NewWSConnection(conn)
	if s.heartbeat > 0 {
		wsConn.SetHeartbeat(s.heartbeat)
	}
	sess := session.NewSession(uuid.NewString(), wsConn)
	s.sessionManager.Add(sess)
	s.metrics.IncOnlinePlayers()

	logger.Log.Infof("New connection from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())

	// 断线不会让玩家离开对局, 重连后发送 hello 再 join 或查询状态即可继续接收推送
	defer func() {
		logger.Log.Infof("Connection closed from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())
		s.sessionManager.Remove(sess.GetID())
		s.metrics.DecOnlinePlayers()
		wsConn.Close()
	}()

	for {
		packet, err := wsConn.ReadPacket()
		if err != nil {
			return
		}
		s.handlePacket(ctx, sess, packet)
	}
}

func (s *GameServer) handlePacket(ctx context.Context, sess *session.Session, packet *network.Packet) {
	sess.Touch()

	if s.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
	}

	switch packet.MsgID {
	case network.MsgTypeHeartbeat:
		if err := sess.Send(network.MsgTypeHeartbeat, nil); err != nil {
			logger.Log.Debugf("heartbeat to %s failed: %v", sess.GetID(), err)
		}
		return
	case network.MsgTypeHello:
		s.handleHello(sess, packet)
		return
	}

	if sess.ParticipantID() == "" {
		s.sendError(sess, packet.MsgID, apperr.ErrInvalidInput.WithDetail("say hello before message %d", packet.MsgID))
		return
	}

	switch packet.MsgID {
	case network.MsgTypeCreateSession:
		s.handleCreateSession(ctx, sess, packet)
	case network.MsgTypeJoinSession:
		s.handleJoinSession(ctx, sess, packet)
	case network.MsgTypeSignalReady:
		var req network.SessionRequest
		if s.decode(sess, packet, &req) {
			s.reply(sess, packet.MsgID, s.service.SignalReady(ctx, s.sessionOf(sess, req.SessionID), sess.ParticipantID()))
		}
	case network.MsgTypeGetState:
		var req network.SessionRequest
		if s.decode(sess, packet, &req) {
			s.sendState(ctx, sess, packet.MsgID, s.sessionOf(sess, req.SessionID))
		}
	case network.MsgTypeNightAction:
		var req network.NightActionRequest
		if s.decode(sess, packet, &req) {
			s.reply(sess, packet.MsgID, s.service.SubmitNightAction(ctx, s.sessionOf(sess, req.SessionID), sess.ParticipantID(), req.Action))
		}
	case network.MsgTypeTaskAnswer:
		var req network.TaskAnswerRequest
		if s.decode(sess, packet, &req) {
			s.reply(sess, packet.MsgID, s.service.SubmitTaskAnswer(ctx, s.sessionOf(sess, req.SessionID), sess.ParticipantID(), req.Answer))
		}
	case network.MsgTypeVote:
		var req network.VoteRequest
		if s.decode(sess, packet, &req) {
			s.reply(sess, packet.MsgID, s.service.SubmitVote(ctx, s.sessionOf(sess, req.SessionID), sess.ParticipantID(), req.Target))
		}
	default:
		logger.Log.Infof("Unknown message type: %d", packet.MsgID)
		s.sendError(sess, packet.MsgID, apperr.ErrInvalidInput.WithDetail("unknown message type %d", packet.MsgID))
	}
}

func (s *GameServer) handleHello(sess *session.Session, packet *network.Packet) {
	var req network.HelloRequest
	if !s.decode(sess, packet, &req) {
		return
	}
	if req.ParticipantID == "" {
		s.sendError(sess, packet.MsgID, apperr.ErrInvalidInput.WithDetail("participant id is required"))
		return
	}
	sess.Bind(req.ParticipantID)
	logger.Log.Debugf("session %s bound to participant %s", sess.GetID(), req.ParticipantID)
	s.reply(sess, packet.MsgID, nil)
}

func (s *GameServer) handleCreateSession(ctx context.Context, sess *session.Session, packet *network.Packet) {
	var req network.CreateSessionRequest
	if !s.decode(sess, packet, &req) {
		return
	}
	result, err := s.service.CreateSession(ctx, sess.ParticipantID(), req.Stake, req.MinParticipants)
	if err != nil {
		s.sendError(sess, packet.MsgID, err)
		return
	}
	sess.EnterRoom(result.SessionID)
	logger.Log.Infof("Session %s created game %s", sess.GetID(), result.SessionID)

	s.send(sess, network.MsgTypeAck, network.Ack{MsgID: packet.MsgID, SessionID: result.SessionID, RoomCode: result.RoomCode})
	s.sendState(ctx, sess, packet.MsgID, result.SessionID)
}

func (s *GameServer) handleJoinSession(ctx context.Context, sess *session.Session, packet *network.Packet) {
	var req network.JoinSessionRequest
	if !s.decode(sess, packet, &req) {
		return
	}
	snap, err := s.service.JoinSession(ctx, req.Session, sess.ParticipantID())
	if errors.Is(err, apperr.ErrAlreadyJoined) {
		// 重连: 已在会话中的玩家重新订阅该房间
		snap, err = s.service.GetStateForParticipant(ctx, req.Session, sess.ParticipantID())
	}
	if err != nil {
		s.sendError(sess, packet.MsgID, err)
		return
	}
	sess.EnterRoom(snap.SessionID)
	logger.Log.Infof("Session %s joined game %s", sess.GetID(), snap.SessionID)

	s.send(sess, network.MsgTypeAck, network.Ack{MsgID: packet.MsgID, SessionID: snap.SessionID, RoomCode: snap.RoomCode})
	s.send(sess, network.MsgTypeStateSnapshot, snap)
}

// sessionOf defaults to the game the connection last entered.
func (s *GameServer) sessionOf(sess *session.Session, requested string) string {
	if requested != "" {
		return requested
	}
	return sess.RoomID()
}

func (s *GameServer) sendState(ctx context.Context, sess *session.Session, msgID uint16, sessionID string) {
	snap, err := s.service.GetStateForParticipant(ctx, sessionID, sess.ParticipantID())
	if err != nil {
		s.sendError(sess, msgID, err)
		return
	}
	sess.EnterRoom(snap.SessionID)
	s.send(sess, network.MsgTypeStateSnapshot, snap)
}

func (s *GameServer) decode(sess *session.Session, packet *network.Packet, v any) bool {
	if err := json.Unmarshal(packet.Data, v); err != nil {
		s.sendError(sess, packet.MsgID, apperr.ErrInvalidInput.Wrap(err))
		return false
	}
	return true
}

func (s *GameServer) reply(sess *session.Session, msgID uint16, err error) {
	if err != nil {
		s.sendError(sess, msgID, err)
		return
	}
	s.send(sess, network.MsgTypeAck, network.Ack{MsgID: msgID})
}

func (s *GameServer) sendError(sess *session.Session, msgID uint16, err error) {
	logger.Log.Debugf("request %d from %s rejected: %v", msgID, sess.GetID(), err)
	s.send(sess, network.MsgTypeError, network.ErrorMessage{
		MsgID:   msgID,
		Kind:    apperr.KindOf(err).String(),
		Code:    string(apperr.CodeOf(err)),
		Message: err.Error(),
	})
}

func (s *GameServer) send(sess *session.Session, msgID uint16, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		logger.Log.Errorf("encode message %d: %v", msgID, err)
		return
	}
	if err := sess.Send(msgID, data); err != nil {
		logger.Log.Debugf("send %d to %s failed: %v", msgID, sess.GetID(), err)
	}
}
