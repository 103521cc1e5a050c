package health

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/danielpatrickdp/safety-envelope/internal/monitor"
)

// Overall is the service name that aggregates every monitor.
const Overall = ""

// #region reporter
// Reporter publishes one grpc health service per monitor. A monitor is
// NOT_SERVING while the latest notification of any worker for it is a
// violation; the overall service is NOT_SERVING while any monitor is.
type Reporter struct {
	srv    *health.Server
	logger *slog.Logger

	mu sync.Mutex
	// violating holds, per monitor, the workers currently in violation.
	violating map[string]map[int]struct{}
}

// NewReporter registers every name as SERVING.
func NewReporter(names []string, logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Reporter{
		srv:       health.NewServer(),
		logger:    logger,
		violating: make(map[string]map[int]struct{}, len(names)),
	}
	for _, n := range names {
		r.violating[n] = make(map[int]struct{})
		r.srv.SetServingStatus(n, healthpb.HealthCheckResponse_SERVING)
	}
	r.srv.SetServingStatus(Overall, healthpb.HealthCheckResponse_SERVING)
	return r
}

// Notify implements monitor.Notifier for a single stream of episodes.
func (r *Reporter) Notify(n monitor.Notification) {
	r.update(0, n)
}

// Worker returns the notifier for one of several concurrent episode streams.
func (r *Reporter) Worker(id int) monitor.Notifier {
	return func(n monitor.Notification) { r.update(id, n) }
}

func (r *Reporter) update(worker int, n monitor.Notification) {
	bad := n.Label == monitor.LabelViolation

	r.mu.Lock()
	defer r.mu.Unlock()
	workers, known := r.violating[n.Monitor]
	if !known {
		workers = make(map[int]struct{})
		r.violating[n.Monitor] = workers
	}
	_, was := workers[worker]
	if known && was == bad {
		return
	}
	if bad {
		workers[worker] = struct{}{}
	} else {
		delete(workers, worker)
	}
	r.srv.SetServingStatus(n.Monitor, status(len(workers) > 0))

	down := false
	for _, w := range r.violating {
		if len(w) > 0 {
			down = true
			break
		}
	}
	r.srv.SetServingStatus(Overall, status(down))
	if bad {
		r.logger.Info("monitor not serving", "monitor", n.Monitor, "worker", worker, "state", n.State)
	}
}

// Server exposes the underlying health server.
func (r *Reporter) Server() *health.Server {
	return r.srv
}

// Serve runs a grpc server with the health service on lis until ctx is done.
func (r *Reporter) Serve(ctx context.Context, lis net.Listener) error {
	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, r.srv)

	errCh := make(chan error, 1)
	go func() {
		errCh <- gs.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		r.srv.Shutdown()
		gs.GracefulStop()
		<-errCh
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("health serve: %w", err)
		}
		return nil
	}
}

func status(violating bool) healthpb.HealthCheckResponse_ServingStatus {
	if violating {
		return healthpb.HealthCheckResponse_NOT_SERVING
	}
	return healthpb.HealthCheckResponse_SERVING
}

// #endregion reporter
