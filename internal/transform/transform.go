package transform

import (
	"context"

	"imgtasks/internal/models"
)

// Transformer turns one source image into a set of resized variants. The
// orchestration layer treats it as opaque: it either returns the full output
// list or fails.
type Transformer interface {
	Transform(ctx context.Context, sourceLocation, outputDir string) ([]models.TaskOutput, error)
}
