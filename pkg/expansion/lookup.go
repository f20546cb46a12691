package expansion

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/runwatch/pkg/domain/types"
	"github.com/dshills/runwatch/pkg/runview"
)

// lookupTimeout bounds a single read of the store during a view pass.
const lookupTimeout = 2 * time.Second

// Lookup adapts store to the run view. Read failures are logged and yield an
// empty mapping, which leaves every node collapsed.
func Lookup(store Store, logger *zap.Logger) runview.ExpansionLookup {
	if logger == nil {
		logger = zap.NewNop()
	}
	return runview.ExpansionFunc(func(runID types.RunID) map[types.NodeID]bool {
		ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
		defer cancel()

		flags, err := store.Load(ctx, runID)
		if err != nil {
			logger.Warn("expansion state unavailable", zap.String("run", runID.String()), zap.Error(err))
			return map[types.NodeID]bool{}
		}
		return flags
	})
}
