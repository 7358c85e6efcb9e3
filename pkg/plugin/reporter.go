package plugin

import (
	"context"

	"firestige.xyz/siemtap/internal/core"
)

// Reporter sends rendered records to external systems.
type Reporter interface {
	Plugin
	Report(ctx context.Context, rec *core.OutputRecord) error
	Flush(ctx context.Context) error
}
