// Package pipeline runs media pipelines as gst-launch-1.0 child
// processes. The engine stays out of media handling entirely; GStreamer
// owns capture, encoding and RTP, this package owns the process.
package pipeline

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"playcast/internal/core/ports"
	"playcast/internal/infrastructure/monitoring"
	apperrors "playcast/pkg/errors"
)

const defaultStopGrace = 3 * time.Second

// GstLaunchEngine builds ports.MediaPipeline values backed by
// gst-launch-1.0 subprocesses.
type GstLaunchEngine struct {
	binary    string
	stopGrace time.Duration
	collector *monitoring.PrometheusCollector
	logger    *zap.SugaredLogger
}

func NewGstLaunchEngine(collector *monitoring.PrometheusCollector, logger *zap.SugaredLogger) *GstLaunchEngine {
	return &GstLaunchEngine{
		binary:    "gst-launch-1.0",
		stopGrace: defaultStopGrace,
		collector: collector,
		logger:    logger,
	}
}

// SetBinary overrides the launcher binary.
func (e *GstLaunchEngine) SetBinary(path string) {
	e.binary = path
}

// SetStopGrace sets how long Stop waits for a clean teardown before
// killing the process.
func (e *GstLaunchEngine) SetStopGrace(grace time.Duration) {
	e.stopGrace = grace
}

// Launch validates the description and prepares a pipeline. The
// process is not spawned until Play.
func (e *GstLaunchEngine) Launch(ctx context.Context, description string) (ports.MediaPipeline, error) {
	args := strings.Fields(description)
	if len(args) == 0 {
		return nil, apperrors.NewPipelineParseFailure(errors.New("empty description"))
	}

	return &gstPipeline{
		binary:    e.binary,
		args:      args,
		stopGrace: e.stopGrace,
		collector: e.collector,
		logger:    e.logger,
		done:      make(chan struct{}),
	}, nil
}

type gstPipeline struct {
	binary    string
	args      []string
	stopGrace time.Duration
	collector *monitoring.PrometheusCollector
	logger    *zap.SugaredLogger

	mu       sync.Mutex
	cmd      *exec.Cmd
	stopping bool
	exited   bool
	done     chan struct{}
}

func (p *gstPipeline) Play(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd != nil {
		return nil
	}

	cmd := exec.Command(p.binary, p.args...)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return apperrors.NewPipelineStateFailure(err, "play")
	}
	cmd.Stdout = cmd.Stderr

	if err := cmd.Start(); err != nil {
		return apperrors.NewPipelineStateFailure(err, "play")
	}
	p.cmd = cmd

	go p.drainOutput(stderr)
	go p.wait()

	p.collector.RecordPipelineState("playing", true)
	p.logger.Infow("pipeline process started", "pid", cmd.Process.Pid)
	return nil
}

func (p *gstPipeline) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.cmd == nil || p.exited {
		p.mu.Unlock()
		return nil
	}
	p.stopping = true
	cmd := p.cmd
	p.mu.Unlock()

	// gst-launch tears down on SIGINT with an EOS flush. Platforms
	// that cannot deliver it fall straight through to the kill below.
	_ = cmd.Process.Signal(os.Interrupt)

	grace := time.NewTimer(p.stopGrace)
	defer grace.Stop()
	select {
	case <-p.done:
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-p.done
	case <-grace.C:
		p.logger.Warnw("pipeline ignored interrupt, killing", "pid", cmd.Process.Pid)
		_ = cmd.Process.Kill()
		<-p.done
	}

	p.collector.RecordPipelineState("null", false)
	p.logger.Infow("pipeline process stopped")
	return nil
}

// wait reaps the child. An exit nobody asked for is logged loudly so a
// crashing encoder shows up in the host logs, not just a black screen
// on the viewer.
func (p *gstPipeline) wait() {
	err := p.cmd.Wait()

	p.mu.Lock()
	p.exited = true
	stopping := p.stopping
	p.mu.Unlock()
	close(p.done)

	if !stopping {
		p.collector.RecordPipelineState("null", false)
		p.logger.Warnw("pipeline process exited unexpectedly", "error", err)
	}
}

func (p *gstPipeline) drainOutput(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.Contains(line, "ERROR") || strings.Contains(line, "WARNING") {
			p.logger.Warnw("pipeline output", "line", line)
		} else {
			p.logger.Debugw("pipeline output", "line", line)
		}
	}
}
