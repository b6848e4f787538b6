package connectivity

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/inspectsync/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type scriptedProber struct {
	mu   sync.Mutex
	errs []error
	hook func()
}

func (p *scriptedProber) Probe(ctx context.Context) error {
	if p.hook != nil {
		p.hook()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.errs) == 0 {
		return nil
	}
	err := p.errs[0]
	p.errs = p.errs[1:]
	return err
}

type recorder struct {
	mu  sync.Mutex
	got []string
}

func (r *recorder) fn(from, to State) {
	r.mu.Lock()
	r.got = append(r.got, string(from)+"->"+string(to))
	r.mu.Unlock()
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.got...)
}

var errDown = errors.New("down")

func TestInitialState(t *testing.T) {
	assert.Equal(t, Offline, New(&scriptedProber{}, time.Second, false, logging.NewNop()).State())
	assert.Equal(t, Probing, New(&scriptedProber{}, time.Second, true, logging.NewNop()).State())
}

func TestProbingConfirmsOnFirstTick(t *testing.T) {
	m := New(&scriptedProber{}, time.Second, true, logging.NewNop())
	rec := &recorder{}
	m.Subscribe(rec.fn)

	m.Tick(context.Background())
	assert.True(t, m.Online())
	assert.Equal(t, []string{"probing->online"}, rec.list())
}

func TestLinkUp_ProbeSucceeds(t *testing.T) {
	m := New(&scriptedProber{}, time.Second, false, logging.NewNop())
	rec := &recorder{}
	m.Subscribe(rec.fn)

	m.LinkUp(context.Background())
	assert.Equal(t, Online, m.State())
	assert.Equal(t, []string{"offline->probing", "probing->online"}, rec.list())
}

func TestLinkUp_ProbeFails(t *testing.T) {
	m := New(&scriptedProber{errs: []error{errDown}}, time.Second, false, logging.NewNop())
	rec := &recorder{}
	m.Subscribe(rec.fn)

	m.LinkUp(context.Background())
	assert.Equal(t, Offline, m.State())
	assert.Equal(t, []string{"offline->probing", "probing->offline"}, rec.list())
}

func TestLinkDown_FromOnline(t *testing.T) {
	m := New(&scriptedProber{}, time.Second, true, logging.NewNop())
	m.Tick(context.Background())
	require.True(t, m.Online())

	rec := &recorder{}
	m.Subscribe(rec.fn)
	m.LinkDown(context.Background())
	assert.Equal(t, Offline, m.State())
	assert.Equal(t, []string{"online->offline"}, rec.list())

	m.LinkDown(context.Background())
	assert.Len(t, rec.list(), 1, "no duplicate transitions")
}

func TestTick_OnlineProbeFailureGoesOffline(t *testing.T) {
	p := &scriptedProber{}
	m := New(p, time.Second, true, logging.NewNop())
	m.Tick(context.Background())
	require.True(t, m.Online())

	rec := &recorder{}
	m.Subscribe(rec.fn)

	m.Tick(context.Background())
	assert.Empty(t, rec.list(), "successful probe keeps Online quietly")

	p.errs = []error{errDown}
	m.Tick(context.Background())
	assert.Equal(t, []string{"online->offline"}, rec.list())
}

func TestTick_OfflineRetriesViaProbing(t *testing.T) {
	m := New(&scriptedProber{errs: []error{errDown}}, time.Second, false, logging.NewNop())
	rec := &recorder{}
	m.Subscribe(rec.fn)

	m.Tick(context.Background())
	m.Tick(context.Background())
	assert.Equal(t, []string{
		"offline->probing", "probing->offline",
		"offline->probing", "probing->online",
	}, rec.list())
}

func TestProbeTimeout(t *testing.T) {
	slow := ProberFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	m := New(slow, 20*time.Millisecond, true, logging.NewNop())

	start := time.Now()
	m.Tick(context.Background())
	assert.Equal(t, Offline, m.State())
	assert.Less(t, time.Since(start), time.Second)
}

func TestLinkDownDuringProbeWins(t *testing.T) {
	p := &scriptedProber{}
	m := New(p, time.Second, true, logging.NewNop())
	p.hook = func() {
		p.hook = nil
		m.LinkDown(context.Background())
	}

	m.Tick(context.Background())
	assert.Equal(t, Offline, m.State(), "late probe success must not override link down")
}

func TestLinkPoller(t *testing.T) {
	m := New(&scriptedProber{}, time.Second, false, logging.NewNop())
	link := false
	lp := NewLinkPoller(m, false, func() bool { return link })
	ctx := context.Background()

	lp.Poll(ctx)
	assert.Equal(t, Offline, m.State())

	link = true
	lp.Poll(ctx)
	assert.Equal(t, Online, m.State())

	link = false
	lp.Poll(ctx)
	assert.Equal(t, Offline, m.State())
}

func startHealthServer(t *testing.T) (string, *health.Server) {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	hs := health.NewServer()
	s := grpc.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	return lis.Addr().String(), hs
}

func TestGRPCHealthProber(t *testing.T) {
	addr, hs := startHealthServer(t)

	p, err := NewGRPCHealthProber(addr, "")
	require.NoError(t, err)
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, p.Probe(ctx))

	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	require.Error(t, p.Probe(ctx))
}

func TestGRPCHealthProber_Unreachable(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := lis.Addr().String()
	require.NoError(t, lis.Close())

	p, err := NewGRPCHealthProber(addr, "")
	require.NoError(t, err)
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	require.Error(t, p.Probe(ctx))
}
