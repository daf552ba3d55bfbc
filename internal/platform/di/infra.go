// internal/platform/di/infra.go
package di

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
	firebaseauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	appcfg "github.com/aaruvan/tokenchamp/internal/infra/config"
	"github.com/aaruvan/tokenchamp/internal/infra/database"
	firestoreinfra "github.com/aaruvan/tokenchamp/internal/infra/firestore"
)

// Infra is shared runtime infrastructure for DI.
// - owns external clients (Firestore / SQL / GCS / FirebaseAuth)
// - 設定された backend の分だけ初期化する
type Infra struct {
	Config *appcfg.Config

	// Clients (owned; Close-managed)
	Firestore    *firestoreinfra.ClientWrapper
	DB           *database.DB
	GCS          *storage.Client
	FirebaseAuth *firebaseauth.Client
}

// NewInfra initializes shared infra.
// State backend / GCS は strict（error を返す）。
// Firebase Auth は best-effort（warn + 認証なしで続行）。
func NewInfra(ctx context.Context, cfg *appcfg.Config) (*Infra, error) {
	if cfg == nil {
		return nil, fmt.Errorf("di.infra: config is nil")
	}
	inf := &Infra{Config: cfg}

	// Credentials file (optional; mainly for local dev)
	var clientOpts []option.ClientOption
	if credFile := strings.TrimSpace(cfg.FirestoreCredentialsFile); credFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(credFile))
		log.Printf("[di.infra] using credentials file for GCP clients: %s", redactPath(credFile))
	}

	// 1) State backend
	switch cfg.StateBackend {
	case appcfg.StateFirestore:
		fs, err := firestoreinfra.NewClient(ctx, cfg.FirestoreProjectID, cfg.FirestoreCredentialsFile, cfg.FirestoreCollectionPrefix)
		if err != nil {
			return nil, err
		}
		if err := fs.CheckCollections(ctx); err != nil {
			log.Printf("[di.infra] WARN: %v", err)
		}
		inf.Firestore = fs
	case appcfg.StatePostgres:
		db, err := database.Open(ctx, database.DriverPostgres, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		inf.DB = db
	case appcfg.StateSQLite:
		db, err := database.Open(ctx, database.DriverSQLite, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		inf.DB = db
	default:
		return nil, fmt.Errorf("di.infra: unknown state backend %q", cfg.StateBackend)
	}

	// 2) GCS（storage backend が gcs のときだけ）
	if cfg.Storage.Backend == appcfg.StorageGCS {
		gcs, err := storage.NewClient(ctx, clientOpts...)
		if err != nil {
			inf.Close()
			return nil, fmt.Errorf("di.infra: storage.NewClient: %w", err)
		}
		inf.GCS = gcs
	}

	// 3) Optional: Firebase Auth（mutating routes の保護）
	if pid := strings.TrimSpace(cfg.FirebaseProjectID); pid != "" {
		app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: pid}, clientOpts...)
		if err != nil {
			log.Printf("[di.infra] WARN: firebase.NewApp failed: %v (operator auth disabled)", err)
		} else if authClient, err := app.Auth(ctx); err != nil {
			log.Printf("[di.infra] WARN: firebase auth init failed: %v (operator auth disabled)", err)
		} else {
			inf.FirebaseAuth = authClient
			log.Printf("[di.infra] firebase auth enabled project=%s", pid)
		}
	} else {
		log.Printf("[di.infra] FIREBASE_PROJECT_ID empty; operator routes are unauthenticated")
	}

	return inf, nil
}

// Close releases every owned client. Nil-safe.
func (i *Infra) Close() {
	if i == nil {
		return
	}
	if i.Firestore != nil {
		_ = i.Firestore.Close()
	}
	if i.DB != nil {
		_ = i.DB.Close()
	}
	if i.GCS != nil {
		_ = i.GCS.Close()
	}
}

// redactPath はログ用にディレクトリを伏せる。
func redactPath(p string) string {
	return ".../" + filepath.Base(p)
}
