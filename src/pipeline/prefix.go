package pipeline

import (
	"bytes"
	"io"
	"sync"
)

// prefixWriter tags every output line with the job name so the output of
// concurrent jobs stays attributable. Writers created from the same mutex
// never interleave within a single Write.
type prefixWriter struct {
	mu        *sync.Mutex
	w         io.Writer
	prefix    []byte
	lineStart bool
}

func newPrefixWriter(mu *sync.Mutex, w io.Writer, name string) *prefixWriter {
	return &prefixWriter{mu: mu, w: w, prefix: []byte("[" + name + "] "), lineStart: true}
}

func (p *prefixWriter) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out bytes.Buffer
	rest := b
	for len(rest) > 0 {
		if p.lineStart {
			out.Write(p.prefix)
			p.lineStart = false
		}
		i := bytes.IndexByte(rest, '\n')
		if i < 0 {
			out.Write(rest)
			break
		}
		out.Write(rest[:i+1])
		rest = rest[i+1:]
		p.lineStart = true
	}
	if _, err := p.w.Write(out.Bytes()); err != nil {
		return 0, err
	}
	return len(b), nil
}
