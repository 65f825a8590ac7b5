package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// maxLineSize bounds a single line of output. Evaluators print whole JSON
// documents on one line.
const maxLineSize = 64 << 20

type CaptureResult struct {
	ExitStatus int
	Stdout     string
	Stderr     string
}

type CaptureOpts struct {
	LogStdout func(string)
	LogStderr func(string)
}

func mergeCaptureOpts(opts []CaptureOpts) CaptureOpts {
	merged := CaptureOpts{
		LogStdout: func(string) {},
		LogStderr: func(string) {},
	}
	for _, o := range opts {
		if o.LogStdout != nil {
			merged.LogStdout = o.LogStdout
		}
		if o.LogStderr != nil {
			merged.LogStderr = o.LogStderr
		}
	}
	return merged
}

type stream int

const (
	stdout stream = iota
	stderr
)

type line struct {
	stream stream
	text   string
}

// Capture runs the command and collects its output line by line, calling the
// log functions for every line as it arrives.
func (s *Shell) Capture(ctx context.Context, cmd *Command, opts ...CaptureOpts) (*CaptureResult, error) {
	opt := mergeCaptureOpts(opts)

	res, outReader, errReader := s.Pipe(ctx, cmd)
	if outReader == nil || errReader == nil {
		r := <-res
		return nil, r.Error
	}
	defer outReader.Close()
	defer errReader.Close()

	lines := make(chan line)
	scanErrs := make([]error, 2)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		scanErrs[stdout] = scanLines(outReader, func(text string) {
			lines <- line{stream: stdout, text: text}
		})
	}()
	go func() {
		defer wg.Done()
		scanErrs[stderr] = scanLines(errReader, func(text string) {
			lines <- line{stream: stderr, text: text}
		})
	}()
	go func() {
		wg.Wait()
		close(lines)
	}()

	// Both streams are consumed here so that log lines keep their order.
	var out, errOut []string
	for l := range lines {
		switch l.stream {
		case stdout:
			opt.LogStdout(l.text)
			out = append(out, l.text)
		case stderr:
			opt.LogStderr(l.text)
			errOut = append(errOut, l.text)
		}
	}

	r := <-res

	err := r.Error
	if err == nil {
		if scanErrs[stdout] != nil {
			err = fmt.Errorf("reading stdout: %w", scanErrs[stdout])
		} else if scanErrs[stderr] != nil {
			err = fmt.Errorf("reading stderr: %w", scanErrs[stderr])
		}
	}

	return &CaptureResult{
		ExitStatus: r.ExitStatus,
		Stdout:     strings.Join(out, "\n"),
		Stderr:     strings.Join(errOut, "\n"),
	}, err
}

func scanLines(r io.Reader, f func(string)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(nil, maxLineSize)
	for sc.Scan() {
		f(sc.Text())
	}
	if err := sc.Err(); err != nil {
		// Keep the writer from blocking on a full pipe.
		_, _ = io.Copy(io.Discard, r)
		return err
	}
	return nil
}
