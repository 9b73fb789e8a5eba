package kfmt

import "io"

// PrefixWriter wraps an io.Writer and starts every output line with Prefix.
// The host replay tool uses it to tag console lines with the CPU that
// produced them.
type PrefixWriter struct {
	// Sink receives the prefixed output.
	Sink io.Writer

	// Prefix is written before the first byte of each line.
	Prefix []byte

	midLine bool
}

// Write forwards p to the sink, inserting the prefix at line starts. The
// returned count excludes prefix bytes.
func (w *PrefixWriter) Write(p []byte) (int, error) {
	var written int

	for len(p) > 0 {
		if !w.midLine {
			if _, err := w.Sink.Write(w.Prefix); err != nil {
				return written, err
			}
			w.midLine = true
		}

		end := len(p)
		for i, b := range p {
			if b == '\n' {
				end = i + 1
				w.midLine = false
				break
			}
		}

		n, err := w.Sink.Write(p[:end])
		written += n
		if err != nil {
			return written, err
		}
		p = p[end:]
	}

	return written, nil
}

// EndLine terminates a partially written line so the next write starts with
// the prefix again.
func (w *PrefixWriter) EndLine() error {
	if !w.midLine {
		return nil
	}
	w.midLine = false
	_, err := w.Sink.Write([]byte{'\n'})
	return err
}
