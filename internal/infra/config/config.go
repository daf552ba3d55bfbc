// internal/infra/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// 永続化バックエンド
const (
	StateFirestore = "firestore"
	StatePostgres  = "postgres"
	StateSQLite    = "sqlite"
)

// permanent storage バックエンド
const (
	StorageArweave = "arweave"
	StorageIPFS    = "ipfs"
	StorageGCS     = "gcs"
	StorageS3      = "s3"
)

// Config はアプリケーション全体の環境変数設定を保持します。
type Config struct {
	Port string

	// ★ WinnerRecord / upload cache の保存先
	StateBackend              string
	DatabaseURL               string
	SQLitePath                string
	FirestoreProjectID        string
	FirestoreCredentialsFile  string
	FirestoreCollectionPrefix string // 例: "dev_" → dev_champion_winners

	// Firebase Auth（空なら認証なし）
	FirebaseProjectID string

	Storage StorageConfig
	Fetch   FetchConfig
	Solana  SolanaConfig
	Retry   RetryConfig
	Mail    MailConfig

	LeaseTTL           time.Duration
	SweepInterval      time.Duration // 0 なら sweeper を起動しない
	StallAfter         time.Duration
	MaxConcurrentMints int
	PublicBaseURL      string
	AllowedOrigins     []string
}

type StorageConfig struct {
	Backend           string
	Endpoint          string // arweave: uploader API / ipfs: Kubo API
	APIKey            string
	Gateway           string
	Timeout           time.Duration
	MaxPayloadBytes   int64
	PermanentPrefixes []string

	GCSBucket string
	GCSPrefix string

	S3Bucket          string
	S3Region          string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3PublicBaseURL   string
	S3Prefix          string
}

type FetchConfig struct {
	Timeout  time.Duration
	MaxBytes int64
}

type SolanaConfig struct {
	RPCURL              string
	Cluster             string // devnet / testnet / mainnet-beta（explorer link 用）
	MintKeySecret       string // Secret Manager の version フルパス
	MintKeypairPath     string // ローカル keypair JSON
	Symbol              string
	ConfirmTimeout      time.Duration
	ConfirmPollInterval time.Duration
}

type RetryConfig struct {
	Ceiling     int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	StepTimeout time.Duration
}

type MailConfig struct {
	SendGridAPIKey string
	From           string
	FromName       string
	OperatorEmails []string
}

// Load は環境変数を読み込み Config を返します。
// .env の読み込みは呼び出し側（cmd/*）で godotenv が行う。
func Load() *Config {
	defaultProject := getenvDefault("GCP_PROJECT_ID", "")

	return &Config{
		Port: getenvDefault("PORT", "8080"),

		StateBackend:              strings.ToLower(getenvDefault("STATE_BACKEND", StateSQLite)),
		DatabaseURL:               os.Getenv("DATABASE_URL"),
		SQLitePath:                getenvDefault("SQLITE_PATH", "champion.db"),
		FirestoreProjectID:        getenvDefault("FIRESTORE_PROJECT_ID", defaultProject),
		FirestoreCredentialsFile:  os.Getenv("FIRESTORE_CREDENTIALS_FILE"),
		FirestoreCollectionPrefix: strings.TrimSpace(os.Getenv("FIRESTORE_COLLECTION_PREFIX")),

		FirebaseProjectID: os.Getenv("FIREBASE_PROJECT_ID"),

		Storage: StorageConfig{
			Backend:           strings.ToLower(getenvDefault("STORAGE_BACKEND", StorageArweave)),
			Endpoint:          os.Getenv("STORAGE_ENDPOINT"),
			APIKey:            os.Getenv("STORAGE_API_KEY"),
			Gateway:           os.Getenv("STORAGE_GATEWAY"),
			Timeout:           getenvDuration("STORAGE_TIMEOUT", 60*time.Second),
			MaxPayloadBytes:   getenvInt64("STORAGE_MAX_PAYLOAD_BYTES", 10<<20),
			PermanentPrefixes: getenvList("PERMANENT_URI_PREFIXES"),
			GCSBucket:         os.Getenv("GCS_BUCKET"),
			GCSPrefix:         getenvDefault("GCS_PREFIX", "champions"),
			S3Bucket:          os.Getenv("S3_BUCKET"),
			S3Region:          getenvDefault("S3_REGION", "auto"),
			S3Endpoint:        os.Getenv("S3_ENDPOINT"),
			S3AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			S3SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
			S3PublicBaseURL:   os.Getenv("S3_PUBLIC_BASE_URL"),
			S3Prefix:          getenvDefault("S3_PREFIX", "champions"),
		},

		Fetch: FetchConfig{
			Timeout:  getenvDuration("FETCH_TIMEOUT", 30*time.Second),
			MaxBytes: getenvInt64("FETCH_MAX_BYTES", 20<<20),
		},

		Solana: SolanaConfig{
			RPCURL:              os.Getenv("SOLANA_RPC_URL"),
			Cluster:             getenvDefault("SOLANA_CLUSTER", "devnet"),
			MintKeySecret:       os.Getenv("SOLANA_MINT_KEY_SECRET"),
			MintKeypairPath:     os.Getenv("SOLANA_KEYPAIR_PATH"),
			Symbol:              getenvDefault("NFT_SYMBOL", "CHAMP"),
			ConfirmTimeout:      getenvDuration("SOLANA_CONFIRM_TIMEOUT", 60*time.Second),
			ConfirmPollInterval: getenvDuration("SOLANA_CONFIRM_POLL", 2*time.Second),
		},

		Retry: RetryConfig{
			Ceiling:     getenvInt("RETRY_CEILING", 5),
			BaseDelay:   getenvDuration("RETRY_BASE_DELAY", 500*time.Millisecond),
			MaxDelay:    getenvDuration("RETRY_MAX_DELAY", 30*time.Second),
			StepTimeout: getenvDuration("STEP_TIMEOUT", 2*time.Minute),
		},

		Mail: MailConfig{
			SendGridAPIKey: os.Getenv("SENDGRID_API_KEY"),
			From:           os.Getenv("SENDGRID_FROM"),
			FromName:       getenvDefault("SENDGRID_FROM_NAME", "Champion Mint"),
			OperatorEmails: getenvList("OPERATOR_EMAILS"),
		},

		LeaseTTL:           getenvDuration("LEASE_TTL", 10*time.Minute),
		SweepInterval:      getenvDuration("SWEEP_INTERVAL", time.Minute),
		StallAfter:         getenvDuration("STALL_AFTER", 15*time.Minute),
		MaxConcurrentMints: getenvInt("MAX_CONCURRENT_MINTS", 4),
		PublicBaseURL:      os.Getenv("PUBLIC_BASE_URL"),
		AllowedOrigins:     getenvList("CORS_ALLOWED_ORIGINS"),
	}
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error

	switch c.StateBackend {
	case StateFirestore:
		if c.FirestoreProjectID == "" {
			errs = append(errs, errors.New("FIRESTORE_PROJECT_ID is required for firestore state backend"))
		}
	case StatePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for postgres state backend"))
		}
	case StateSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH is empty"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STATE_BACKEND %q", c.StateBackend))
	}

	switch c.Storage.Backend {
	case StorageArweave:
		if c.Storage.Endpoint == "" {
			errs = append(errs, errors.New("STORAGE_ENDPOINT is required for arweave"))
		}
	case StorageIPFS:
	case StorageGCS:
		if c.Storage.GCSBucket == "" {
			errs = append(errs, errors.New("GCS_BUCKET is required for gcs"))
		}
	case StorageS3:
		if c.Storage.S3Bucket == "" {
			errs = append(errs, errors.New("S3_BUCKET is required for s3"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_BACKEND %q", c.Storage.Backend))
	}

	if c.Storage.MaxPayloadBytes <= 0 {
		errs = append(errs, errors.New("STORAGE_MAX_PAYLOAD_BYTES must be positive"))
	}
	if c.Fetch.MaxBytes <= 0 {
		errs = append(errs, errors.New("FETCH_MAX_BYTES must be positive"))
	}
	if c.Retry.Ceiling < 1 {
		errs = append(errs, errors.New("RETRY_CEILING must be at least 1"))
	}
	if c.Retry.BaseDelay < 0 || c.Retry.MaxDelay < c.Retry.BaseDelay {
		errs = append(errs, errors.New("RETRY_MAX_DELAY must be >= RETRY_BASE_DELAY >= 0"))
	}
	if c.Retry.StepTimeout <= 0 {
		errs = append(errs, errors.New("STEP_TIMEOUT must be positive"))
	}
	if c.LeaseTTL <= 0 {
		errs = append(errs, errors.New("LEASE_TTL must be positive"))
	}
	// lease が切れる前に 1 ステップが終わること
	if c.LeaseTTL > 0 && c.Retry.StepTimeout > c.LeaseTTL {
		errs = append(errs, errors.New("STEP_TIMEOUT must not exceed LEASE_TTL"))
	}
	if c.MaxConcurrentMints < 1 {
		errs = append(errs, errors.New("MAX_CONCURRENT_MINTS must be at least 1"))
	}

	return errors.Join(errs...)
}

func getenvDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getenvInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

// getenvDuration は "90s" 形式のほか、単位なしの整数を秒として受け付ける。
func getenvDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return def
}

func getenvList(key string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
