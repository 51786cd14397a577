package audio

import (
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"
)

// Player streams raw playback PCM into a sox process.
type Player struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	mu     sync.Mutex
	closed bool
}

// NewPlayer starts sox reading signed 16-bit mono PCM at rate from stdin.
func NewPlayer(rate int) (*Player, error) {
	cmd := exec.Command("sox",
		"-t", "raw",
		"-r", strconv.Itoa(rate),
		"-b", "16",
		"-c", "1",
		"-e", "signed-integer",
		"-",
		"-d",
	)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("sox stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start sox (is it installed?): %w", err)
	}
	return &Player{cmd: cmd, stdin: stdin}, nil
}

// Write queues PCM for playback. Writes after Close are discarded.
func (p *Player) Write(pcm []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return len(pcm), nil
	}
	return p.stdin.Write(pcm)
}

// Close flushes stdin and waits for sox to finish playing.
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.stdin.Close()
	return p.cmd.Wait()
}
