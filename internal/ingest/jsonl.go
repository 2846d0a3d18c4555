package ingest

import (
	"context"
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
)

// DecodeJSONLines decodes a stream of concatenated JSON values (one per line
// in practice), sending each to the returned channel. Both channels are
// closed when processing completes; at most one error is sent.
func DecodeJSONLines[T any](ctx context.Context, r io.Reader) (<-chan T, <-chan error) {
	outCh := make(chan T, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(outCh)
		defer close(errCh)

		decoder := json.NewDecoder(r)
		for n := 1; ; n++ {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "jsonl: context cancelled")
				return
			}

			var item T
			if err := decoder.Decode(&item); err != nil {
				if err == io.EOF {
					return
				}
				errCh <- eris.Wrapf(err, "jsonl: decode record %d", n)
				return
			}

			select {
			case outCh <- item:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "jsonl: context cancelled")
				return
			}
		}
	}()

	return outCh, errCh
}
