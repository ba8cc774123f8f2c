package composer

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// stopGrace is how long a capture tool gets to flush and exit after
// SIGINT before it is killed.
const stopGrace = 2 * time.Second

// captureCandidates are the system capture tools probed in order. Each
// builds the argv that records into the given path until interrupted.
var captureCandidates = []struct {
	bin  string
	args func(path string) []string
}{
	{"parecord", func(p string) []string { return []string{"--file-format=wav", p} }},
	{"arecord", func(p string) []string { return []string{"-q", "-f", "cd", "-t", "wav", p} }},
	{"sox", func(p string) []string { return []string{"-q", "-d", "-t", "wav", p} }},
}

// CaptureRecorder records voice clips by running a system capture tool
// and collecting the file it writes. Stop interrupts the tool so it
// finalizes the container before the file is read.
type CaptureRecorder struct {
	bin     string
	argsFor func(string) []string
	logger  *zap.Logger

	mu      sync.Mutex
	cmd     *exec.Cmd
	outPath string
	started time.Time
}

// NewCaptureRecorder probes PATH for a usable capture tool. Returns
// ErrNoRecorder when none is installed.
func NewCaptureRecorder(logger *zap.Logger) (*CaptureRecorder, error) {
	for _, c := range captureCandidates {
		path, err := exec.LookPath(c.bin)
		if err != nil {
			continue
		}
		logger.Info("audio capture available", zap.String("tool", path))
		return newCaptureRecorder(path, c.args, logger), nil
	}
	return nil, ErrNoRecorder
}

func newCaptureRecorder(bin string, argsFor func(string) []string, logger *zap.Logger) *CaptureRecorder {
	return &CaptureRecorder{bin: bin, argsFor: argsFor, logger: logger.Named("capture")}
}

// Start launches the capture tool writing to a temp file.
func (r *CaptureRecorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cmd != nil {
		return fmt.Errorf("capture already running")
	}

	out := filepath.Join(os.TempDir(), fmt.Sprintf("chirp-rec-%d.wav", time.Now().UnixNano()))
	cmd := exec.Command(r.bin, r.argsFor(out)...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start capture: %w", err)
	}

	r.cmd = cmd
	r.outPath = out
	r.started = time.Now()
	r.logger.Debug("capture started", zap.String("path", out))
	return nil
}

// Stop ends the capture and returns the recorded clip.
func (r *CaptureRecorder) Stop() (Clip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cmd == nil {
		return Clip{}, fmt.Errorf("capture not running")
	}

	elapsed := time.Since(r.started)
	interruptAndWait(r.cmd)
	data, err := os.ReadFile(r.outPath)
	_ = os.Remove(r.outPath)
	r.cmd = nil
	r.outPath = ""

	if err != nil {
		return Clip{}, fmt.Errorf("read capture: %w", err)
	}
	if len(data) == 0 {
		// The tool started but produced nothing, typically because no
		// input device was available.
		return Clip{}, ErrMicDenied
	}
	return Clip{
		Name:     fmt.Sprintf("voice-%ds.wav", int(elapsed.Seconds())),
		Data:     data,
		Duration: elapsed,
	}, nil
}

// Cancel ends the capture and discards whatever was written.
func (r *CaptureRecorder) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cmd == nil {
		return
	}
	interruptAndWait(r.cmd)
	_ = os.Remove(r.outPath)
	r.cmd = nil
	r.outPath = ""
	r.logger.Debug("capture cancelled")
}

// interruptAndWait signals the tool to finish, killing it if it does
// not exit within stopGrace.
func interruptAndWait(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	_ = cmd.Process.Signal(os.Interrupt)
	done := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(stopGrace):
		_ = cmd.Process.Kill()
		<-done
	}
}
