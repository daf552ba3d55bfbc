// internal/platform/di/container.go
package di

import (
	"context"
	"fmt"
	"log"
	"net/http"

	httpin "github.com/aaruvan/tokenchamp/internal/adapters/in/http"
	"github.com/aaruvan/tokenchamp/internal/adapters/in/http/handlers"
	"github.com/aaruvan/tokenchamp/internal/adapters/in/http/middleware"
	sqladapter "github.com/aaruvan/tokenchamp/internal/adapters/out/db"
	fsadapter "github.com/aaruvan/tokenchamp/internal/adapters/out/firestore"
	gcsadapter "github.com/aaruvan/tokenchamp/internal/adapters/out/gcs"
	"github.com/aaruvan/tokenchamp/internal/adapters/out/mail"
	"github.com/aaruvan/tokenchamp/internal/adapters/out/s3store"
	mintapp "github.com/aaruvan/tokenchamp/internal/application/mint"
	windom "github.com/aaruvan/tokenchamp/internal/domain/winner"
	arweaveinfra "github.com/aaruvan/tokenchamp/internal/infra/arweave"
	appcfg "github.com/aaruvan/tokenchamp/internal/infra/config"
	"github.com/aaruvan/tokenchamp/internal/infra/database"
	"github.com/aaruvan/tokenchamp/internal/infra/fetch"
	ipfsinfra "github.com/aaruvan/tokenchamp/internal/infra/ipfs"
	"github.com/aaruvan/tokenchamp/internal/infra/metrics"
	solanainfra "github.com/aaruvan/tokenchamp/internal/infra/solana"
)

// Options selects which parts of the pipeline to build.
// CLI の status / list / upload はチェーン接続（mint authority）なしで動かす。
type Options struct {
	WithChain bool
}

// Container は main.go から使う依存オブジェクトの束。
type Container struct {
	Config  *appcfg.Config
	Infra   *Infra
	Metrics *metrics.Pipeline

	Tracker  *mintapp.MintStateTracker
	Uploader *mintapp.DedupUploader

	// WithChain のときだけ non-nil
	Minter       *mintapp.OnChainMinter
	Orchestrator *mintapp.Orchestrator
	Dispatcher   *mintapp.Dispatcher
}

// Build は DIコンテナを初期化して返す。
//   - 外部クライアント（Infra）
//   - Repository / BlobStore / UploadCache（backend 選択）
//   - Tracker / Uploader / Minter / Orchestrator / Dispatcher
func Build(ctx context.Context, cfg *appcfg.Config, opts Options) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	inf, err := NewInfra(ctx, cfg)
	if err != nil {
		return nil, err
	}
	c := &Container{Config: cfg, Infra: inf, Metrics: metrics.NewPipeline()}

	// ------------------------------------------------------------
	// 1. Repository / UploadCache
	// ------------------------------------------------------------
	repo, cache, err := newStateStores(ctx, inf)
	if err != nil {
		inf.Close()
		return nil, err
	}

	// ------------------------------------------------------------
	// 2. BlobStore
	// ------------------------------------------------------------
	store, err := newBlobStore(ctx, cfg, inf)
	if err != nil {
		inf.Close()
		return nil, err
	}

	c.Tracker = mintapp.NewMintStateTracker(repo, cfg.LeaseTTL)
	c.Uploader = mintapp.NewDedupUploader(store, cache, cfg.Storage.MaxPayloadBytes, cfg.Storage.PermanentPrefixes).
		WithMetrics(c.Metrics).
		WithFlightTimeout(cfg.Retry.StepTimeout)

	log.Printf("[di] state=%s storage=%s", cfg.StateBackend, store.Name())

	if !opts.WithChain {
		return c, nil
	}

	// ------------------------------------------------------------
	// 3. Chain / Orchestrator / Dispatcher
	// ------------------------------------------------------------
	authority, err := solanainfra.LoadMintAuthority(ctx, cfg.Solana.MintKeySecret, cfg.Solana.MintKeypairPath)
	if err != nil {
		inf.Close()
		return nil, err
	}
	chain, err := solanainfra.NewMintClient(cfg.Solana.RPCURL, authority)
	if err != nil {
		inf.Close()
		return nil, err
	}
	c.Minter = mintapp.NewOnChainMinter(chain, cfg.Solana.ConfirmTimeout, cfg.Solana.ConfirmPollInterval)

	deps := mintapp.OrchestratorDeps{
		Tracker:  c.Tracker,
		Fetcher:  fetch.NewHTTPFetcher(cfg.Fetch.Timeout, cfg.Fetch.MaxBytes),
		Uploader: c.Uploader,
		Metadata: mintapp.NewMetadataBuilder(c.Uploader, cfg.Solana.Symbol),
		Minter:   c.Minter,
		Metrics:  c.Metrics,
	}
	if n := mail.NewFailureNotifierWithSendGrid(
		cfg.Mail.SendGridAPIKey, cfg.Mail.From, cfg.Mail.FromName, cfg.Mail.OperatorEmails, cfg.PublicBaseURL,
	); n != nil {
		deps.Notifier = n
	} else {
		log.Printf("[di] operator notifications disabled (SENDGRID_API_KEY / OPERATOR_EMAILS empty)")
	}

	retry := mintapp.RetryPolicy{
		Ceiling:   cfg.Retry.Ceiling,
		BaseDelay: cfg.Retry.BaseDelay,
		MaxDelay:  cfg.Retry.MaxDelay,
	}
	c.Orchestrator, err = mintapp.NewOrchestrator(deps, retry, cfg.Retry.StepTimeout)
	if err != nil {
		inf.Close()
		return nil, err
	}
	c.Dispatcher = mintapp.NewDispatcher(c.Orchestrator, cfg.MaxConcurrentMints)

	log.Printf("[di] chain ready authority=%s cluster=%s", authority.Address(), cfg.Solana.Cluster)
	return c, nil
}

// Router builds the HTTP surface. Build は WithChain で呼ぶこと。
func (c *Container) Router() http.Handler {
	var auth *middleware.OperatorAuth
	if c.Infra.FirebaseAuth != nil {
		auth = &middleware.OperatorAuth{Verifier: c.Infra.FirebaseAuth}
	}

	var winners *handlers.WinnerHandler
	if c.Orchestrator != nil {
		winners = handlers.NewWinnerHandler(c.Tracker, c.Orchestrator, c.Dispatcher, c.Minter, c.Config.Solana.Cluster)
	}

	return httpin.NewRouter(httpin.RouterDeps{
		Winners:        winners,
		Auth:           auth,
		Metrics:        c.Metrics.Handler(),
		Panics:         c.Metrics.HTTPPanics(),
		AllowedOrigins: c.Config.AllowedOrigins,
	})
}

// Close は終了時に呼んで安全にリソースを閉じる。
// Dispatcher の drain は呼び出し側（cmd/api）が先に行う。
func (c *Container) Close() {
	if c == nil {
		return
	}
	c.Infra.Close()
}

func newStateStores(ctx context.Context, inf *Infra) (windom.Repository, mintapp.UploadCache, error) {
	switch {
	case inf.Firestore != nil:
		fs, cols := inf.Firestore.Client, inf.Firestore.Collections
		return fsadapter.NewWinnerRepositoryFS(fs, cols.Winners), fsadapter.NewUploadCacheFS(fs, cols.Uploads), nil

	case inf.DB != nil:
		if err := sqladapter.Migrate(ctx, inf.DB.Client); err != nil {
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		dialect := sqladapter.DialectPostgres
		if inf.DB.Driver == database.DriverSQLite {
			dialect = sqladapter.DialectSQLite
		}
		return sqladapter.NewWinnerRepositorySQL(inf.DB.Client, dialect), sqladapter.NewUploadCacheSQL(inf.DB.Client), nil
	}
	return nil, nil, fmt.Errorf("di: no state backend initialized")
}

func newBlobStore(ctx context.Context, cfg *appcfg.Config, inf *Infra) (mintapp.BlobStore, error) {
	sc := cfg.Storage
	switch sc.Backend {
	case appcfg.StorageArweave:
		return arweaveinfra.NewHTTPUploader(sc.Endpoint, sc.APIKey, sc.Timeout, sc.Gateway), nil
	case appcfg.StorageIPFS:
		return ipfsinfra.NewClient(sc.Endpoint, sc.APIKey, sc.Timeout), nil
	case appcfg.StorageGCS:
		if inf.GCS == nil {
			return nil, fmt.Errorf("di: gcs client not initialized")
		}
		return gcsadapter.NewChampionBlobStoreGCS(inf.GCS, sc.GCSBucket, sc.GCSPrefix), nil
	case appcfg.StorageS3:
		return s3store.NewBlobStoreS3(ctx, s3store.Options{
			Endpoint:        sc.S3Endpoint,
			Region:          sc.S3Region,
			AccessKeyID:     sc.S3AccessKeyID,
			SecretAccessKey: sc.S3SecretAccessKey,
			Bucket:          sc.S3Bucket,
			Prefix:          sc.S3Prefix,
			PublicBaseURL:   sc.S3PublicBaseURL,
		})
	}
	return nil, fmt.Errorf("di: unknown storage backend %q", sc.Backend)
}
