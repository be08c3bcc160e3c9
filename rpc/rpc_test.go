package rpc

import (
	"context"
	"net"
	"net/rpc"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	"github.com/wfunc/nightfall/config"
	"github.com/wfunc/nightfall/models"
	"github.com/wfunc/nightfall/persistence"
	"github.com/wfunc/nightfall/room"
	"github.com/wfunc/nightfall/services"
)

func newAdmin(t *testing.T) (*AdminService, *services.GameService, *persistence.MemoryDatabase) {
	t.Helper()
	cfg := config.DefaultGameConfig()
	cfg.Retention = 0
	rooms := room.NewRoomManager(cfg)
	t.Cleanup(rooms.Close)
	db := persistence.NewMemoryDatabase()
	svc := services.NewGameService(rooms, db)
	return NewAdminService(svc), svc, db
}

// pipeClient serves one in-memory connection and returns a client for it.
func pipeClient(t *testing.T, admin *AdminService) *rpc.Client {
	t.Helper()
	rpcServer := rpc.NewServer()
	require.NoError(t, rpcServer.RegisterName(ServiceName, admin))

	serverConn, clientConn := net.Pipe()
	go rpcServer.ServeConn(serverConn)
	client := rpc.NewClient(clientConn)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestAdmin_ListAndGetSession(t *testing.T) {
	admin, svc, _ := newAdmin(t)
	created, err := svc.CreateSession(context.Background(), "P1", "1", 0)
	require.NoError(t, err)
	client := pipeClient(t, admin)

	var list ListSessionsReply
	require.NoError(t, client.Call(ServiceName+".ListSessions", &ListSessionsArgs{}, &list))
	require.Len(t, list.Sessions, 1)
	assert.Equal(t, created.SessionID, list.Sessions[0].SessionID)

	var filtered ListSessionsReply
	require.NoError(t, client.Call(ServiceName+".ListSessions", &ListSessionsArgs{Phase: models.PhaseNight}, &filtered))
	assert.Empty(t, filtered.Sessions)

	var got GetSessionReply
	require.NoError(t, client.Call(ServiceName+".GetSession", &GetSessionArgs{Session: created.RoomCode}, &got))
	assert.Equal(t, created.SessionID, got.Snapshot.SessionID)
	assert.Equal(t, models.PhaseLobby, got.Snapshot.Phase)

	err = client.Call(ServiceName+".GetSession", &GetSessionArgs{Session: "missing"}, &got)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session not found")
}

func TestAdmin_GetParticipant(t *testing.T) {
	admin, _, db := newAdmin(t)
	require.NoError(t, db.SaveGameRecord(context.Background(), &models.GameRecord{
		ID:        "r1",
		SessionID: "s1",
		Winners:   []string{"P1", "P2"},
		Losers:    []string{"P3"},
	}))
	client := pipeClient(t, admin)

	var reply ParticipantReply
	require.NoError(t, client.Call(ServiceName+".GetParticipant", &ParticipantArgs{ParticipantID: "P3"}, &reply))
	assert.Equal(t, 1, reply.Stats.TotalGames)
	assert.Equal(t, 1, reply.Stats.Losses)
	require.Len(t, reply.Records, 1)
	assert.Equal(t, "s1", reply.Records[0].SessionID)

	err := client.Call(ServiceName+".GetParticipant", &ParticipantArgs{}, &reply)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "participant id is required")
}

func TestServer_ListensAndStops(t *testing.T) {
	admin, _, _ := newAdmin(t)
	srv, err := NewServer("127.0.0.1:0", admin)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- srv.Start() }()

	client, err := rpc.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	var list ListSessionsReply
	require.NoError(t, client.Call(ServiceName+".ListSessions", &ListSessionsArgs{}, &list))
	client.Close()

	require.NoError(t, srv.Stop())
	assert.NoError(t, <-done)
}

func TestHealthServer(t *testing.T) {
	listener := bufconn.Listen(1 << 16)
	hs := newHealthServer(listener)
	done := make(chan error, 1)
	go func() { done <- hs.Start() }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	defer conn.Close()

	resp, err := grpc_health_v1.NewHealthClient(conn).Check(context.Background(), &grpc_health_v1.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, resp.GetStatus())

	hs.Stop()
	assert.NoError(t, <-done)
}
