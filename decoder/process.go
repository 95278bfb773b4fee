package decoder

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
)

// Process is a running decoder with its output streams.
type Process interface {
	// Video returns the raw RGB24 stream
	Video() io.Reader

	// Audio returns the raw s16le stream, or nil when audio is disabled
	Audio() io.Reader

	// Wait blocks until the decoder exits. Call it only after both streams
	// have been read to the end.
	Wait() error

	// Kill terminates the decoder. It is safe to call at any time.
	Kill()

	// Stderr returns the tail of the decoder's diagnostic output
	Stderr() string
}

// Starter launches a decoder.
type Starter func(ctx context.Context) (Process, error)

// ExecStarter runs binary with args. When audio is set the audio stream is
// read from file descriptor 3 of the child.
func ExecStarter(binary string, args []string, audio bool) Starter {
	return func(ctx context.Context) (Process, error) {
		return startExec(ctx, binary, args, audio)
	}
}

type execProcess struct {
	cmd    *exec.Cmd
	video  io.ReadCloser
	audio  *os.File
	stderr *tailBuffer

	killOnce sync.Once
}

func startExec(ctx context.Context, binary string, args []string, audio bool) (*execProcess, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	p := &execProcess{cmd: cmd, stderr: newTailBuffer(stderrTail)}
	cmd.Stderr = p.stderr

	video, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	p.video = video

	var audioW *os.File
	if audio {
		r, w, err := os.Pipe()
		if err != nil {
			return nil, fmt.Errorf("audio pipe: %w", err)
		}
		p.audio = r
		audioW = w
		cmd.ExtraFiles = []*os.File{w}
	}

	if err := cmd.Start(); err != nil {
		if audioW != nil {
			audioW.Close()
			p.audio.Close()
		}
		return nil, err
	}
	// The child holds its own copy; ours must go so the reader sees EOF.
	if audioW != nil {
		audioW.Close()
	}
	return p, nil
}

func (p *execProcess) Video() io.Reader {
	return p.video
}

func (p *execProcess) Audio() io.Reader {
	if p.audio == nil {
		return nil
	}
	return p.audio
}

func (p *execProcess) Wait() error {
	err := p.cmd.Wait()
	if p.audio != nil {
		p.audio.Close()
	}
	return err
}

func (p *execProcess) Kill() {
	p.killOnce.Do(func() {
		if p.cmd.Process != nil {
			p.cmd.Process.Kill()
		}
		// Unblock readers still waiting on the pipes.
		p.video.Close()
		if p.audio != nil {
			p.audio.Close()
		}
	})
}

func (p *execProcess) Stderr() string {
	return p.stderr.String()
}

const stderrTail = 4096

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
