// internal/adapters/in/cli/wire.go
package cli

import (
	"context"

	appcfg "github.com/aaruvan/tokenchamp/internal/infra/config"
	"github.com/aaruvan/tokenchamp/internal/platform/di"
)

// buildContainer はコマンドごとに必要な分だけ組み立てる。
// mint / retry だけがチェーン接続（mint authority）を要求する。
var buildContainer = func(ctx context.Context, withChain bool) (*di.Container, error) {
	return di.Build(ctx, appcfg.Load(), di.Options{WithChain: withChain})
}
