package supervisor

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thejerf/suture/v4"

	"github.com/iliyamo/seatd/internal/logging"
)

type fakeServer struct {
	listenErr error
	started   chan struct{}
	stop      chan struct{}
	shutdowns atomic.Int32
}

func newFakeServer() *fakeServer {
	return &fakeServer{started: make(chan struct{}, 1), stop: make(chan struct{})}
}

func (f *fakeServer) ListenAndServe() error {
	select {
	case f.started <- struct{}{}:
	default:
	}
	if f.listenErr != nil {
		return f.listenErr
	}
	<-f.stop
	return http.ErrServerClosed
}

func (f *fakeServer) Shutdown(context.Context) error {
	if f.shutdowns.Add(1) == 1 {
		close(f.stop)
	}
	return nil
}

func TestHTTPService_GracefulShutdown(t *testing.T) {
	srv := newFakeServer()
	svc := NewHTTPService(srv, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	<-srv.started
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	assert.Equal(t, int32(1), srv.shutdowns.Load())
}

func TestHTTPService_ListenError(t *testing.T) {
	srv := newFakeServer()
	srv.listenErr = errors.New("address already in use")

	err := NewHTTPService(srv, time.Second).Serve(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "address already in use")
}

type countingService struct{ runs atomic.Int32 }

func (c *countingService) Serve(ctx context.Context) error {
	c.runs.Add(1)
	<-ctx.Done()
	return ctx.Err()
}

func TestTree_RunsServices(t *testing.T) {
	tree := New(TreeConfig{ShutdownTimeout: time.Second})
	storage, messaging, api := &countingService{}, &countingService{}, &countingService{}
	tree.AddStorageService(storage)
	tree.AddMessagingService(messaging)
	tree.AddAPIService(api)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	assert.Eventually(t, func() bool {
		return storage.runs.Load() == 1 && messaging.runs.Load() == 1 && api.runs.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-errCh:
	case <-time.After(3 * time.Second):
		t.Fatal("tree did not stop")
	}
}

func TestLogEvent(t *testing.T) {
	prev := logging.Logger()
	t.Cleanup(func() { logging.SetLogger(prev) })
	var buf bytes.Buffer
	logging.SetLogger(zerolog.New(&buf))

	logEvent(suture.EventStopTimeout{SupervisorName: "api", ServiceName: "http-server"})

	out := buf.String()
	assert.Contains(t, out, `"level":"warn"`)
	assert.Contains(t, out, `"component":"supervisor"`)
	assert.Contains(t, out, "http-server")
}
