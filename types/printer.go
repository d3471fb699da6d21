package types

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gosuri/uilive"
)

// TerminalPrinter refreshes one terminal line per ParallelOutput
type TerminalPrinter struct {
	outputs   []*ParallelOutput
	frequency time.Duration

	writer  *uilive.Writer
	writers []io.Writer

	cancel context.CancelFunc
	done   chan struct{}
}

func NewTerminalPrinter(out io.Writer, outputs []*ParallelOutput, frequency time.Duration) *TerminalPrinter {
	writer := uilive.New()
	writer.Out = out
	writers := make([]io.Writer, len(outputs))
	if len(outputs) > 0 {
		writers[0] = writer
	}
	for i := 1; i < len(outputs); i++ {
		writers[i] = writer.Newline()
	}
	return &TerminalPrinter{
		outputs:   outputs,
		frequency: frequency,
		writer:    writer,
		writers:   writers,
		done:      make(chan struct{}),
	}
}

// Start printing until Stop is called or the context is done
func (p *TerminalPrinter) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	go func() {
		defer close(p.done)
		ticker := time.NewTicker(p.frequency)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				p.print()
				return
			case <-ticker.C:
				p.print()
			}
		}
	}()
}

// Stop prints a last time and waits for the printer to exit
func (p *TerminalPrinter) Stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
}

func (p *TerminalPrinter) print() {
	for i, output := range p.outputs {
		fmt.Fprint(p.writers[i], output.Get()+"\n")
	}
	p.writer.Flush()
}

// ParallelOutput is the current status line of one experiment
type ParallelOutput struct {
	mu        sync.Mutex
	printable string
}

func NewParallelOutput(initial string) *ParallelOutput {
	return &ParallelOutput{printable: initial}
}

// Set the output string (blocking)
func (p *ParallelOutput) Set(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.printable = s
}

// Try to set the output string (non-blocking)
func (p *ParallelOutput) TrySet(s string) bool {
	if p.mu.TryLock() {
		defer p.mu.Unlock()
		p.printable = s
		return true
	}
	return false
}

// Get the output string (blocking)
func (p *ParallelOutput) Get() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.printable
}
