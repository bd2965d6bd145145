package prime

import (
	"context"
	"io"
)

// readChunk bounds how much is read between cancellation checks.
const readChunk = 1024

// contextReader wraps a reader with context cancellation checks
type contextReader struct {
	ctx    context.Context
	reader io.Reader
}

func newContextReader(ctx context.Context, r io.Reader) *contextReader {
	return &contextReader{ctx: ctx, reader: r}
}

func (cr *contextReader) Read(p []byte) (int, error) {
	total := 0
	for total < len(p) {
		if err := cr.ctx.Err(); err != nil {
			return total, err
		}

		end := total + readChunk
		if end > len(p) {
			end = len(p)
		}
		n, err := cr.reader.Read(p[total:end])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
