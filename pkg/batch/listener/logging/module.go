package logging

import (
	"go.uber.org/fx"
)

// Module provides one instance of every logging listener.
var Module = fx.Options(
	fx.Provide(
		NewLoggingJobListener,
		NewLoggingStepListener,
		NewLoggingChunkListener,
		NewLoggingSkipListener,
	),
)
