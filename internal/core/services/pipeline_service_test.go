package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"playcast/internal/core/domain"
	"playcast/internal/core/ports"
	"playcast/pkg/settings"
)

type fakeMediaPipeline struct {
	played   int
	stopped  int
	failPlay bool
	failStop bool
}

func (f *fakeMediaPipeline) Play(ctx context.Context) error {
	f.played++
	if f.failPlay {
		return errors.New("state change refused")
	}
	return nil
}

func (f *fakeMediaPipeline) Stop(ctx context.Context) error {
	f.stopped++
	if f.failStop {
		return errors.New("teardown refused")
	}
	return nil
}

type fakeMediaEngine struct {
	descriptions []string
	pipelines    []*fakeMediaPipeline
	failLaunch   bool
	failPlay     bool
	failStop     bool
}

func (f *fakeMediaEngine) Launch(ctx context.Context, description string) (ports.MediaPipeline, error) {
	f.descriptions = append(f.descriptions, description)
	if f.failLaunch {
		return nil, errors.New("no element \"d3d11screencapturesrc\"")
	}
	p := &fakeMediaPipeline{failPlay: f.failPlay, failStop: f.failStop}
	f.pipelines = append(f.pipelines, p)
	return p, nil
}

func newPipelineFixture(t *testing.T, bitrate int) (*PipelineService, *fakeMediaEngine) {
	t.Helper()
	cfg := settings.Default()
	cfg.Bitrate = bitrate
	engine := &fakeMediaEngine{}
	svc := NewPipelineService(engine, settings.NewStore(cfg), 5601, 5602, zaptest.NewLogger(t).Sugar())
	return svc, engine
}

func TestPipelineService_EnsurePlayingLaunchesOnce(t *testing.T) {
	svc, engine := newPipelineFixture(t, 20000)
	ctx := context.Background()

	svc.EnsurePlaying(ctx, "192.168.0.42")
	svc.EnsurePlaying(ctx, "192.168.0.42")

	if len(engine.descriptions) != 1 {
		t.Errorf("Launch calls = %d, want 1", len(engine.descriptions))
	}
	if got := svc.State(); got != domain.PipelinePlaying {
		t.Errorf("State() = %v, want %v", got, domain.PipelinePlaying)
	}
}

func TestPipelineService_DescriptionTargetsPeer(t *testing.T) {
	svc, engine := newPipelineFixture(t, 4500)

	svc.EnsurePlaying(context.Background(), "192.168.0.42")

	if len(engine.descriptions) != 1 {
		t.Fatalf("Launch calls = %d, want 1", len(engine.descriptions))
	}
	desc := engine.descriptions[0]
	for _, want := range []string{
		"host=192.168.0.42",
		"port=5601",
		"port=5602",
		"bitrate=4500",
	} {
		if !strings.Contains(desc, want) {
			t.Errorf("description missing %q:\n%s", want, desc)
		}
	}
}

func TestPipelineService_LaunchFailureLeavesNullAndRetries(t *testing.T) {
	svc, engine := newPipelineFixture(t, 20000)
	engine.failLaunch = true
	ctx := context.Background()

	svc.EnsurePlaying(ctx, "10.0.0.1")
	if got := svc.State(); got != domain.PipelineNull {
		t.Errorf("State() after failed launch = %v, want %v", got, domain.PipelineNull)
	}

	// A later presence transition retries from scratch.
	engine.failLaunch = false
	svc.EnsurePlaying(ctx, "10.0.0.1")
	if len(engine.descriptions) != 2 {
		t.Errorf("Launch calls = %d, want 2", len(engine.descriptions))
	}
	if got := svc.State(); got != domain.PipelinePlaying {
		t.Errorf("State() after retry = %v, want %v", got, domain.PipelinePlaying)
	}
}

func TestPipelineService_PlayFailureDiscardsHandle(t *testing.T) {
	svc, engine := newPipelineFixture(t, 20000)
	engine.failPlay = true

	svc.EnsurePlaying(context.Background(), "10.0.0.1")

	if got := svc.State(); got != domain.PipelineNull {
		t.Errorf("State() = %v, want %v", got, domain.PipelineNull)
	}
	if len(engine.pipelines) != 1 || engine.pipelines[0].stopped != 1 {
		t.Error("failed pipeline was not torn down")
	}
}

func TestPipelineService_StopClearsHandleEvenOnError(t *testing.T) {
	svc, engine := newPipelineFixture(t, 20000)
	engine.failStop = true
	ctx := context.Background()

	svc.EnsurePlaying(ctx, "10.0.0.1")
	svc.Stop(ctx)

	if got := svc.State(); got != domain.PipelineNull {
		t.Errorf("State() = %v, want %v after a failed stop", got, domain.PipelineNull)
	}

	// The handle is gone, so a second stop touches nothing.
	svc.Stop(ctx)
	if engine.pipelines[0].stopped != 1 {
		t.Errorf("stop calls = %d, want 1", engine.pipelines[0].stopped)
	}

	// And the next viewer gets a fresh launch.
	svc.EnsurePlaying(ctx, "10.0.0.2")
	if len(engine.descriptions) != 2 {
		t.Errorf("Launch calls = %d, want 2", len(engine.descriptions))
	}
}

func TestBuildDescription(t *testing.T) {
	desc := buildDescription("203.0.113.5", 5601, 5602, 8000)

	if !strings.HasPrefix(desc, "rtpbin name=rtpbin ") {
		t.Errorf("description must route both branches through one rtpbin:\n%s", desc)
	}
	for _, want := range []string{
		"d3d11screencapturesrc show-cursor=true",
		"x264enc name=enc tune=zerolatency",
		"bitrate=8000",
		"rtph264pay config-interval=-1",
		"rtpbin.send_rtp_sink_0",
		"udpsink host=203.0.113.5 port=5601",
		"wasapi2src loopback=true",
		"opusenc perfect-timestamp=false",
		"rtpbin.send_rtp_sink_1",
		"udpsink host=203.0.113.5 port=5602",
	} {
		if !strings.Contains(desc, want) {
			t.Errorf("description missing %q", want)
		}
	}
}
