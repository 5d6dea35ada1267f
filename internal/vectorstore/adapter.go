package vectorstore

import (
	"context"

	"github.com/codesearch-core/codesearch/internal/outbox"
)

// OutboxAdapter wraps a Store to satisfy outbox.VectorApplier. Kept as a
// thin wrapper rather than having Store's methods speak outbox.VectorPoint
// directly, so this package's domain type (Point) stays independent of the
// outbox package.
type OutboxAdapter struct {
	Store Store
}

func (a OutboxAdapter) UpsertPoint(ctx context.Context, collection string, point outbox.VectorPoint) error {
	sparse := make([]SparseTerm, len(point.Sparse))
	for i, t := range point.Sparse {
		sparse[i] = SparseTerm{TokenID: t.TokenID, Weight: t.Weight}
	}
	return a.Store.UpsertPoints(ctx, collection, []Point{{
		PointID:       point.PointID,
		EntityID:      point.EntityID,
		RepositoryID:  point.RepositoryID,
		QualifiedName: point.QualifiedName,
		Name:          point.Name,
		EntityType:    point.EntityType,
		Language:      point.Language,
		FilePath:      point.FilePath,
		StartLine:     point.StartLine,
		EndLine:       point.EndLine,
		Dense:         point.Dense,
		Sparse:        sparse,
	}})
}

func (a OutboxAdapter) DeletePoints(ctx context.Context, collection string, pointIDs []string) error {
	return a.Store.DeletePoints(ctx, collection, pointIDs)
}

var _ outbox.VectorApplier = OutboxAdapter{}
