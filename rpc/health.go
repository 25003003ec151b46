package rpc

import (
	"errors"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/wfunc/treasurerace/logger"
)

// GameHealthService is the service name reported next to the server-wide "".
const GameHealthService = "tesouro.Game"

// HealthServer answers grpc.health.v1 checks. It reports SERVING while a
// match is being played.
type HealthServer struct {
	listener net.Listener
	grpc     *grpc.Server
	health   *health.Server
}

func NewHealthServer(addr string) (*HealthServer, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return NewHealthServerOn(listener), nil
}

func NewHealthServerOn(listener net.Listener) *HealthServer {
	h := &HealthServer{
		listener: listener,
		grpc:     grpc.NewServer(),
		health:   health.NewServer(),
	}
	healthpb.RegisterHealthServer(h.grpc, h.health)
	h.SetServing(true)
	return h
}

func (h *HealthServer) Addr() string {
	return h.listener.Addr().String()
}

// Start blocks serving until Stop.
func (h *HealthServer) Start() {
	logger.Log.Infof("gRPC health listening on %s", h.Addr())
	if err := h.grpc.Serve(h.listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		logger.Log.Errorf("gRPC health server stopped: %v", err)
	}
}

func (h *HealthServer) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus("", status)
	h.health.SetServingStatus(GameHealthService, status)
}

func (h *HealthServer) Stop() {
	h.health.Shutdown()
	h.grpc.GracefulStop()
}
