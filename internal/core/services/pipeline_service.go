package services

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"playcast/internal/core/domain"
	"playcast/internal/core/ports"
	"playcast/pkg/settings"
	"playcast/pkg/tracing"
)

// PipelineService drives the single capture pipeline. All transitions
// run under one mutex and arrive from the session lifecycle worker, so
// launch and stop never overlap.
type PipelineService struct {
	engine ports.MediaEngine
	store  *settings.Store
	logger *zap.SugaredLogger

	videoPort int
	audioPort int

	mu      sync.Mutex
	current ports.MediaPipeline
}

func NewPipelineService(
	engine ports.MediaEngine,
	store *settings.Store,
	videoPort, audioPort int,
	logger *zap.SugaredLogger,
) *PipelineService {
	return &PipelineService{
		engine:    engine,
		store:     store,
		logger:    logger,
		videoPort: videoPort,
		audioPort: audioPort,
	}
}

// EnsurePlaying launches the pipeline toward peerHost unless one is
// already running. Launch and start failures are logged and swallowed;
// the session stays up and a later presence change retries.
func (s *PipelineService) EnsurePlaying(ctx context.Context, peerHost string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		s.logger.Debugw("pipeline already playing", "host", peerHost)
		return
	}

	ctx, span := tracing.TracePipelineOperation(ctx, "launch", "")
	defer span.End()

	bitrate := s.store.Get().Bitrate
	desc := buildDescription(peerHost, s.videoPort, s.audioPort, bitrate)

	pipeline, err := s.engine.Launch(ctx, desc)
	if err != nil {
		tracing.RecordError(ctx, err)
		s.logger.Errorw("pipeline description rejected", "host", peerHost, "error", err)
		return
	}

	if err := pipeline.Play(ctx); err != nil {
		tracing.RecordError(ctx, err)
		s.logger.Errorw("pipeline failed to start", "host", peerHost, "error", err)
		if stopErr := pipeline.Stop(ctx); stopErr != nil {
			s.logger.Debugw("cleanup of failed pipeline", "error", stopErr)
		}
		return
	}

	s.current = pipeline
	s.logger.Infow("pipeline playing",
		"host", peerHost,
		"video_port", s.videoPort,
		"audio_port", s.audioPort,
		"bitrate", bitrate)
}

// Stop tears down the current pipeline. The handle is cleared even when
// teardown reports an error so a stuck pipeline can't block the next
// launch.
func (s *PipelineService) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return
	}

	ctx, span := tracing.TracePipelineOperation(ctx, "stop", "")
	defer span.End()

	if err := s.current.Stop(ctx); err != nil {
		tracing.RecordError(ctx, err)
		s.logger.Warnw("pipeline stop failed", "error", err)
	}
	s.current = nil
	s.logger.Infow("pipeline stopped")
}

func (s *PipelineService) State() domain.PipelineState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		return domain.PipelinePlaying
	}
	return domain.PipelineNull
}

// buildDescription renders the gst-launch description for one viewer.
// Video is captured from the desktop and sent as RTP H.264, audio is
// the system loopback as RTP Opus, both through a shared rtpbin.
func buildDescription(host string, videoPort, audioPort, bitrate int) string {
	video := fmt.Sprintf(
		"d3d11screencapturesrc show-cursor=true ! videoconvert ! queue ! "+
			"x264enc name=enc tune=zerolatency sliced-threads=true speed-preset=ultrafast bframes=0 bitrate=%d key-int-max=120 ! "+
			"video/x-h264,profile=main ! rtph264pay config-interval=-1 aggregate-mode=zero-latency ! "+
			"application/x-rtp,encoding-name=H264,clock-rate=90000,media=video,payload=96 ! rtpbin.send_rtp_sink_0 "+
			"rtpbin. ! udpsink host=%s port=%d sync=false",
		bitrate, host, videoPort)
	audio := fmt.Sprintf(
		"wasapi2src loopback=true low-latency=true ! queue ! audioconvert ! audioresample ! queue ! "+
			"opusenc perfect-timestamp=false ! rtpopuspay ! "+
			"application/x-rtp,encoding-name=OPUS,media=audio,payload=127 ! rtpbin.send_rtp_sink_1 "+
			"rtpbin. ! udpsink host=%s port=%d sync=false",
		host, audioPort)
	return "rtpbin name=rtpbin " + video + " " + audio
}
