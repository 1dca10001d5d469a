package recognize

import (
	"context"

	"github.com/HikariJones/Inclusive-AI-UMKM/constants"
	"github.com/HikariJones/Inclusive-AI-UMKM/internal/entity"
)

// Recognizer is one recognition backend: PNG bytes in, positioned tokens out.
// Implementations must return a *BackendError for every failure so no raw
// transport error crosses into the pipeline.
type Recognizer interface {
	ExtractWithPositions(ctx context.Context, png []byte) ([]entity.Token, error)
	Name() constants.BackendID
}
