//*****************************************************************************
// Copyright 2024-2025 Intel Corporation
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//*****************************************************************************

package capture

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/logger"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/process"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/source"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/types"
)

const (
	DefaultWidth       = 640
	DefaultHeight      = 480
	DefaultFPS         = 30
	DefaultOpenTimeout = 10 * time.Second

	imageFramerate = 10
)

var fpsPattern = regexp.MustCompile(`Video:.*?(\d+(?:\.\d+)?) (?:fps|tbr)`)

// FFmpegOpener decodes every source kind with an ffmpeg child writing rgb24 frames to stdout.
type FFmpegOpener struct {
	Path        string
	Width       int
	Height      int
	OpenTimeout time.Duration
}

func NewFFmpegOpener(path string) *FFmpegOpener {
	if path == "" {
		path = "ffmpeg"
	}
	return &FFmpegOpener{
		Path:        path,
		Width:       DefaultWidth,
		Height:      DefaultHeight,
		OpenTimeout: DefaultOpenTimeout,
	}
}

// Args returns the ffmpeg command line for locator.
func (o *FFmpegOpener) Args(locator string, kind types.SourceKind) []string {
	args := []string{"-hide_banner", "-nostdin", "-loglevel", "info"}
	switch kind {
	case types.SourceDevice:
		args = append(args, "-f", "v4l2")
	case types.SourceFile:
		args = append(args, "-re")
	case types.SourceImage:
		args = append(args, "-framerate", strconv.Itoa(imageFramerate))
	case types.SourceStream:
		if strings.HasPrefix(strings.ToLower(locator), "rtsp://") {
			args = append(args, "-rtsp_transport", "tcp")
		}
	}
	if kind.Policy().LoopOnEOF {
		if kind == types.SourceImage {
			args = append(args, "-loop", "1")
		} else {
			args = append(args, "-stream_loop", "-1")
		}
	}
	args = append(args, "-i", locator, "-an",
		"-vf", fmt.Sprintf("scale=%d:%d", o.Width, o.Height),
		"-pix_fmt", "rgb24", "-f", "rawvideo", "pipe:1")
	return args
}

// Open starts ffmpeg and waits for the first frame, so a bad locator fails here.
func (o *FFmpegOpener) Open(ctx context.Context, locator string, kind types.SourceKind) (source.Capture, error) {
	pm := process.NewProcessManager("ffmpeg")
	err := pm.Start(ctx, &process.StartConfig{
		Name:     "ffmpeg",
		ExecPath: o.Path,
		Args:     o.Args(locator, kind),
		Mode:     process.StartModePipe,
	})
	if err != nil {
		return nil, err
	}

	c := newFFmpegCapture(pm, pm.Stdout(), o.Width, o.Height, locator)
	if kind == types.SourceImage {
		c.setFPS(imageFramerate)
	}
	go c.watchStderr(pm.Stderr())

	timeout := o.OpenTimeout
	if timeout <= 0 {
		timeout = DefaultOpenTimeout
	}
	openCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	first := make(chan error, 1)
	go func() {
		f, err := c.readFrame()
		if err == nil {
			c.pending = f
		}
		first <- err
	}()
	select {
	case err := <-first:
		if err != nil {
			_ = c.Close()
			return nil, err
		}
	case <-openCtx.Done():
		_ = c.Close()
		<-first
		return nil, fmt.Errorf("no frame from %s within %v", locator, timeout)
	}
	return c, nil
}

type ffmpegCapture struct {
	pm      process.ProcessManager
	out     io.Reader
	width   int
	height  int
	locator string
	buf     []byte
	pending *types.Frame

	mu      sync.Mutex
	fps     float64
	lastLog string
	closed  bool
}

func newFFmpegCapture(pm process.ProcessManager, out io.Reader, width, height int, locator string) *ffmpegCapture {
	return &ffmpegCapture{
		pm:      pm,
		out:     out,
		width:   width,
		height:  height,
		locator: locator,
		buf:     make([]byte, width*height*3),
	}
}

// Read returns the next rgb24 frame. It is not safe for concurrent use.
func (c *ffmpegCapture) Read(ctx context.Context) (*types.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f := c.pending; f != nil {
		c.pending = nil
		return f, nil
	}
	return c.readFrame()
}

func (c *ffmpegCapture) readFrame() (*types.Frame, error) {
	if _, err := io.ReadFull(c.out, c.buf); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			err = io.EOF
		}
		c.mu.Lock()
		last, closed := c.lastLog, c.closed
		c.mu.Unlock()
		if closed {
			return nil, fmt.Errorf("capture closed")
		}
		if last != "" {
			return nil, fmt.Errorf("%w: %s", err, last)
		}
		return nil, err
	}
	data := make([]byte, len(c.buf))
	copy(data, c.buf)
	return &types.Frame{
		Timestamp: time.Now(),
		Width:     c.width,
		Height:    c.height,
		Data:      data,
		Locator:   c.locator,
	}, nil
}

func (c *ffmpegCapture) FPS() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fps <= 0 {
		return DefaultFPS
	}
	return c.fps
}

func (c *ffmpegCapture) setFPS(fps float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fps <= 0 {
		c.fps = fps
	}
}

func (c *ffmpegCapture) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	if c.pm == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return c.pm.Stop(ctx)
}

// watchStderr records the stream rate and the last diagnostic line.
func (c *ffmpegCapture) watchStderr(r io.Reader) {
	if r == nil {
		return
	}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if fps, ok := ParseFPS(line); ok {
			c.setFPS(fps)
		}
		c.mu.Lock()
		c.lastLog = line
		c.mu.Unlock()
		logger.StreamLogger.Debug("[FFmpeg] "+line, "locator", c.locator)
	}
}

// ParseFPS extracts the frame rate from an ffmpeg stream description line.
func ParseFPS(line string) (float64, bool) {
	m := fpsPattern.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	fps, err := strconv.ParseFloat(m[1], 64)
	if err != nil || fps <= 0 || math.IsInf(fps, 0) {
		return 0, false
	}
	return fps, true
}
