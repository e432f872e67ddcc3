package serialization

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/born-ml/curvnet/internal/tensor"
)

// maxConcurrentReads bounds the number of files read at once.
const maxConcurrentReads = 8

// ReadConcat reads the float records of several files concurrently and
// returns them as one flat tensor: files in the given order, records in file
// order. Int records are skipped.
func ReadConcat(ctx context.Context, paths []string) (*tensor.Tensor, error) {
	parts := make([][]float64, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentReads)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			records, _, err := ReadFile(path)
			if err != nil {
				return err
			}
			for _, r := range records {
				parts[i] = append(parts[i], r.Float...)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "concatenated read")
	}

	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := tensor.Zeros(tensor.Shape{n})
	d := out.Data()
	off := 0
	for _, p := range parts {
		off += copy(d[off:], p)
	}
	return out, nil
}
