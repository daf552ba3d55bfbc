package mint

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	mintdom "github.com/aaruvan/tokenchamp/internal/domain/mint"
	windom "github.com/aaruvan/tokenchamp/internal/domain/winner"
)

const testWallet = "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin"

// ------------------------------------------------------
// memRepo
// ------------------------------------------------------

type memRepo struct {
	mu     sync.Mutex
	recs   map[string]windom.WinnerRecord
	stages map[string][]windom.Stage
}

var _ windom.Repository = (*memRepo)(nil)

func newMemRepo() *memRepo {
	return &memRepo{recs: map[string]windom.WinnerRecord{}, stages: map[string][]windom.Stage{}}
}

func (m *memRepo) Create(_ context.Context, r windom.WinnerRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.recs[r.WinnerID]; ok {
		return windom.ErrAlreadyExists
	}
	m.recs[r.WinnerID] = r
	m.stages[r.WinnerID] = []windom.Stage{r.Stage}
	return nil
}

func (m *memRepo) Get(_ context.Context, id string) (windom.WinnerRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.recs[id]
	if !ok {
		return windom.WinnerRecord{}, windom.ErrNotFound
	}
	return r, nil
}

func (m *memRepo) Update(_ context.Context, id string, fn windom.UpdateFunc) (windom.WinnerRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.recs[id]
	if !ok {
		return windom.WinnerRecord{}, windom.ErrNotFound
	}
	if err := fn(&r); err != nil {
		return windom.WinnerRecord{}, err
	}
	m.recs[id] = r
	m.stages[id] = append(m.stages[id], r.Stage)
	return r, nil
}

func (m *memRepo) List(_ context.Context, f windom.ListFilter) ([]windom.WinnerRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []windom.WinnerRecord{}
	for _, r := range m.recs {
		if f.Matches(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// set mutates a stored record directly (crash simulation).
func (m *memRepo) set(t *testing.T, id string, fn func(r *windom.WinnerRecord)) {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.recs[id]
	if !ok {
		t.Fatalf("record %s not found", id)
	}
	fn(&r)
	m.recs[id] = r
}

// ------------------------------------------------------
// fakeFetcher
// ------------------------------------------------------

type fakeFetcher struct {
	mu      sync.Mutex
	calls   int
	bodies  map[string][]byte
	failing []error // popped per call
	always  error
}

var _ ContentFetcher = (*fakeFetcher)(nil)

func (f *fakeFetcher) Fetch(_ context.Context, url string) (mintdom.Content, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.always != nil {
		return mintdom.Content{}, f.always
	}
	if len(f.failing) > 0 {
		err := f.failing[0]
		f.failing = f.failing[1:]
		return mintdom.Content{}, err
	}
	b, ok := f.bodies[url]
	if !ok {
		return mintdom.Content{}, &mintdom.FetchError{URL: url, StatusCode: 404}
	}
	return mintdom.Content{Data: b, ContentType: "image/png", SourceURL: url}, nil
}

func (f *fakeFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// ------------------------------------------------------
// fakeStore / memCache
// ------------------------------------------------------

type fakeStore struct {
	mu      sync.Mutex
	puts    []string // content types, in call order
	failing []error  // popped per call; nil entries succeed
	block   chan struct{}
	entered chan struct{} // buffered; signalled when a Put starts
}

var _ BlobStore = (*fakeStore)(nil)

func (s *fakeStore) Name() string         { return "fake" }
func (s *fakeStore) PublicPrefix() string { return "fake://" }

func (s *fakeStore) Put(ctx context.Context, data []byte, contentType, hash string) (string, error) {
	if s.entered != nil {
		select {
		case s.entered <- struct{}{}:
		default:
		}
	}
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts = append(s.puts, contentType)
	if len(s.failing) > 0 {
		err := s.failing[0]
		s.failing = s.failing[1:]
		if err != nil {
			return "", err
		}
	}
	return "fake://" + hash[:16], nil
}

func (s *fakeStore) count(contentType string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, ct := range s.puts {
		if contentType == "" || ct == contentType {
			n++
		}
	}
	return n
}

type memCache struct {
	mu sync.Mutex
	m  map[string]mintdom.UploadResult
}

var _ UploadCache = (*memCache)(nil)

func (c *memCache) Lookup(_ context.Context, hash string) (mintdom.UploadResult, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.m[hash]
	return r, ok, nil
}

func (c *memCache) Remember(_ context.Context, r mintdom.UploadResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.m == nil {
		c.m = map[string]mintdom.UploadResult{}
	}
	c.m[r.ContentHash] = r
	return nil
}

// ------------------------------------------------------
// fakeChain
// ------------------------------------------------------

// submitStep scripts one SubmitMint call.
type submitStep struct {
	err  error
	land bool
}

type fakeChain struct {
	mu sync.Mutex

	prepares    int
	submits     int
	statusCalls int

	script           []submitStep
	landed           map[string]bool
	failedOnChain    map[string]string
	blockhashExpired bool
}

var _ ChainClient = (*fakeChain)(nil)

func newFakeChain() *fakeChain {
	return &fakeChain{landed: map[string]bool{}, failedOnChain: map[string]string{}}
}

func (c *fakeChain) ValidateRecipient(address string) error {
	if address == "" || strings.ContainsAny(address, "-_ ") {
		return &mintdom.InvalidRecipientError{Address: address, Reason: "not base58"}
	}
	return nil
}

func (c *fakeChain) PrepareMint(_ context.Context, req mintdom.MintRequest) (windom.PendingMint, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prepares++
	sig := fmt.Sprintf("sig-%d", c.prepares)
	return windom.PendingMint{
		TokenID:    fmt.Sprintf("tok-%d", c.prepares),
		Signature:  sig,
		RawTx:      []byte(sig + "|" + req.MetadataURI),
		Blockhash:  "bh",
		PreparedAt: time.Now(),
	}, nil
}

func (c *fakeChain) SubmitMint(_ context.Context, p windom.PendingMint) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.submits++
	if len(c.script) > 0 {
		step := c.script[0]
		c.script = c.script[1:]
		if step.land {
			c.landed[p.Signature] = true
		}
		return step.err
	}
	c.landed[p.Signature] = true
	return nil
}

func (c *fakeChain) SignatureStatus(_ context.Context, sig string) (mintdom.SignatureStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statusCalls++
	if reason, ok := c.failedOnChain[sig]; ok {
		return mintdom.SignatureStatus{Status: mintdom.StatusFailed, Err: reason}, nil
	}
	if c.landed[sig] {
		return mintdom.SignatureStatus{Status: mintdom.StatusConfirmed}, nil
	}
	return mintdom.SignatureStatus{Status: mintdom.StatusNotFound}, nil
}

func (c *fakeChain) BlockhashValid(context.Context, string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.blockhashExpired, nil
}

func (c *fakeChain) confirmed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.landed)
}

func (c *fakeChain) networkCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.prepares + c.submits + c.statusCalls
}

// ------------------------------------------------------
// fakeNotifier
// ------------------------------------------------------

type fakeNotifier struct {
	mu    sync.Mutex
	calls []error
}

var _ FailureNotifier = (*fakeNotifier)(nil)

func (n *fakeNotifier) NotifyFailure(_ context.Context, _ windom.WinnerRecord, cause error) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, cause)
	return nil
}

// ------------------------------------------------------
// harness
// ------------------------------------------------------

type harness struct {
	repo     *memRepo
	fetcher  *fakeFetcher
	store    *fakeStore
	cache    *memCache
	chain    *fakeChain
	notifier *fakeNotifier
	tracker  *MintStateTracker
	uploader *DedupUploader
	orch     *Orchestrator
}

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func newHarness(t *testing.T, ceiling int) *harness {
	t.Helper()
	h := &harness{
		repo:     newMemRepo(),
		fetcher:  &fakeFetcher{bodies: map[string][]byte{}},
		store:    &fakeStore{},
		cache:    &memCache{},
		chain:    newFakeChain(),
		notifier: &fakeNotifier{},
	}
	h.tracker = NewMintStateTracker(h.repo, time.Minute)
	h.uploader = NewDedupUploader(h.store, h.cache, 1<<20, DefaultPermanentPrefixes)

	minter := NewOnChainMinter(h.chain, 20*time.Millisecond, time.Millisecond)
	minter.sleep = noSleep

	orch, err := NewOrchestrator(OrchestratorDeps{
		Tracker:  h.tracker,
		Fetcher:  h.fetcher,
		Uploader: h.uploader,
		Metadata: NewMetadataBuilder(h.uploader, ""),
		Minter:   minter,
		Notifier: h.notifier,
	}, RetryPolicy{Ceiling: ceiling, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}, time.Second)
	if err != nil {
		t.Fatalf("NewOrchestrator() error = %v", err)
	}
	orch.sleep = noSleep
	h.orch = orch
	return h
}

func (h *harness) declare(t *testing.T, id, imageURL string, image []byte) windom.WinnerRecord {
	t.Helper()
	if image != nil {
		h.fetcher.bodies[imageURL] = image
	}
	rec, err := h.tracker.Declare(context.Background(), windom.NewWinnerInput{
		WinnerID:               id,
		TournamentID:           "spring-cup",
		TeamID:                 "falcons-" + id,
		RecipientWalletAddress: testWallet,
		DisplayName:            "Spring Cup Champion - March 2026",
		Description:            "Champion badge " + id,
		SourceImageURL:         imageURL,
		Attributes:             []windom.Attribute{{TraitType: "Team", Value: "Falcons " + id}},
	}, windom.ChampionInfo{})
	if err != nil {
		t.Fatalf("Declare(%s) error = %v", id, err)
	}
	return rec
}

func (h *harness) mustGet(t *testing.T, id string) windom.WinnerRecord {
	t.Helper()
	r, err := h.repo.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get(%s) error = %v", id, err)
	}
	return r
}

var errBoom = errors.New("boom")
