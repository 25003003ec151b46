package rpc

import (
	"context"
	"net"
	"net/rpc"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	"github.com/wfunc/treasurerace/models"
)

type fakeProvider struct{}

func (fakeProvider) Status() models.Status {
	return models.Status{MatchID: "m-1", Phase: "playing", Players: 3, TreasuresRemaining: 5}
}

func (fakeProvider) Ranking() []models.PlayerResult {
	return []models.PlayerResult{
		{PlayerID: 2, Score: 4, Rank: 1},
		{PlayerID: 1, Score: 1, Rank: 2},
		{PlayerID: 3, Score: 0, Rank: 3},
	}
}

type fakeLeaderboard struct{ asked int64 }

func (f *fakeLeaderboard) Leaderboard(_ context.Context, n int64) ([]models.PlayerResult, error) {
	f.asked = n
	return []models.PlayerResult{{PlayerID: 9, Score: 40, Rank: 1}}, nil
}

func TestLeaderboard(t *testing.T) {
	var reply RankingReply
	err := NewGameService(fakeProvider{}, nil).Leaderboard(&RankingArgs{}, &reply)
	assert.ErrorIs(t, err, ErrNoLeaderboard)

	lb := &fakeLeaderboard{}
	require.NoError(t, NewGameService(fakeProvider{}, lb).Leaderboard(&RankingArgs{}, &reply))
	assert.Equal(t, int64(10), lb.asked)
	require.Len(t, reply.Players, 1)
	assert.Equal(t, int64(9), reply.Players[0].PlayerID)
}

func TestGameServiceOverRPC(t *testing.T) {
	srv, err := NewServer("127.0.0.1:0", NewGameService(fakeProvider{}, nil))
	require.NoError(t, err)
	go srv.Start()
	defer srv.Stop()

	client, err := rpc.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	defer client.Close()

	var status StatusReply
	require.NoError(t, client.Call(ServiceName+".Status", &StatusArgs{}, &status))
	assert.Equal(t, "m-1", status.Status.MatchID)
	assert.Equal(t, 3, status.Status.Players)
	assert.Equal(t, 5, status.Status.TreasuresRemaining)

	err = client.Call(ServiceName+".Status", &StatusArgs{MatchID: "m-2"}, &status)
	assert.EqualError(t, err, ErrUnknownMatch.Error())

	var ranking RankingReply
	require.NoError(t, client.Call(ServiceName+".Ranking", &RankingArgs{Limit: 2}, &ranking))
	require.Len(t, ranking.Players, 2)
	assert.Equal(t, int64(2), ranking.Players[0].PlayerID)

	ranking = RankingReply{}
	require.NoError(t, client.Call(ServiceName+".Ranking", &RankingArgs{}, &ranking))
	assert.Len(t, ranking.Players, 3)
}

func TestServiceOverPipe(t *testing.T) {
	srv := rpc.NewServer()
	require.NoError(t, srv.RegisterName(ServiceName, NewGameService(fakeProvider{}, nil)))

	serverConn, clientConn := net.Pipe()
	go srv.ServeConn(serverConn)
	client := rpc.NewClient(clientConn)
	defer client.Close()

	var status StatusReply
	require.NoError(t, client.Call(ServiceName+".Status", &StatusArgs{MatchID: "m-1"}, &status))
	assert.Equal(t, "playing", status.Status.Phase)
}

func TestHealthServer(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	h := NewHealthServerOn(lis)
	go h.Start()
	defer h.Stop()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	defer conn.Close()

	client := healthpb.NewHealthClient(conn)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: GameHealthService})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)

	h.SetServing(false)
	resp, err = client.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.Status)
}
