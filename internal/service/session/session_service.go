package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"ngram-sandbox/internal/model/ngram"
	"ngram-sandbox/internal/service"
	"ngram-sandbox/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrSessionNotFound is returned for unknown session IDs
var ErrSessionNotFound = errors.New("session not found")

const (
	MinOrder = 2
	MaxOrder = 4
)

// Session is a snapshot of one generation workspace
type Session struct {
	ID          string    `json:"id"`
	CorpusID    string    `json:"corpus_id"`
	Seed        string    `json:"seed"`
	SeedTokens  []string  `json:"seed_tokens"`
	Generated   []string  `json:"generated"`
	Order       int       `json:"order"`
	Temperature float64   `json:"temperature"`
	Animating   bool      `json:"animating"`
	CreatedAt   time.Time `json:"created_at"`
}

// Output returns the seed tokens followed by the generated ones
func (s Session) Output() []string {
	out := make([]string, 0, len(s.SeedTokens)+len(s.Generated))
	out = append(out, s.SeedTokens...)
	return append(out, s.Generated...)
}

// CreateOptions configures a new session. Nil fields take service defaults.
type CreateOptions struct {
	CorpusID    string
	Seed        string
	Order       *int
	Temperature *float64
}

// UpdateOptions changes generation parameters of an existing session
type UpdateOptions struct {
	Order       *int
	Temperature *float64
}

// ContextView describes the prediction point at the end of a session's output
type ContextView struct {
	CurrentToken  string              `json:"current_token,omitempty"`
	ResolvedToken string              `json:"resolved_token,omitempty"`
	Resolution    *service.Resolution `json:"resolution,omitempty"`
}

type Config struct {
	DefaultOrder       int
	DefaultTemperature float64
	AnimationInterval  time.Duration
}

type animation struct {
	cancel context.CancelFunc
	done   chan struct{}
}

type entry struct {
	session   Session
	animation *animation
	removed   bool
	mu        sync.Mutex
}

// SessionService owns all generation sessions. Each session reads the models
// of its corpus from the catalog.
type SessionService struct {
	catalog  *service.CorpusCatalog
	sampler  *service.Sampler
	config   Config
	sessions map[string]*entry
	baseCtx  context.Context
	stop     context.CancelFunc
	logger   *zap.Logger
	mu       sync.RWMutex
}

// NewSessionService creates a session service. Animations run until stopped
// or until Close is called.
func NewSessionService(catalog *service.CorpusCatalog, sampler *service.Sampler, cfg Config, logger *zap.Logger) *SessionService {
	if sampler == nil {
		sampler = service.NewSampler()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultOrder == 0 {
		cfg.DefaultOrder = MinOrder
	}
	if cfg.AnimationInterval <= 0 {
		cfg.AnimationInterval = 200 * time.Millisecond
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &SessionService{
		catalog:  catalog,
		sampler:  sampler,
		config:   cfg,
		sessions: make(map[string]*entry),
		baseCtx:  ctx,
		stop:     cancel,
		logger:   logger,
	}
}

func clampOrder(order int) int {
	return util.Clamp(order, MinOrder, MaxOrder)
}

func (s *SessionService) get(id string) (*entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return e, nil
}

// snapshot must be called with e.mu held
func (e *entry) snapshot() Session {
	out := e.session
	out.SeedTokens = append(make([]string, 0, len(e.session.SeedTokens)), e.session.SeedTokens...)
	out.Generated = append(make([]string, 0, len(e.session.Generated)), e.session.Generated...)
	out.Animating = e.animation != nil
	return out
}

func (s *SessionService) generator(ctx context.Context, corpusID string) (*service.Generator, error) {
	cm, err := s.catalog.Manager(ctx, corpusID)
	if err != nil {
		return nil, err
	}
	return service.NewGenerator(cm.Models(), s.sampler, s.logger), nil
}

// Create starts a new session bound to a corpus. The corpus is trained if
// it has not been yet.
func (s *SessionService) Create(ctx context.Context, opts CreateOptions) (Session, error) {
	corpusID := opts.CorpusID
	if corpusID == "" {
		corpusID = s.catalog.DefaultID()
	}
	gen, err := s.generator(ctx, corpusID)
	if err != nil {
		return Session{}, err
	}

	e := &entry{session: Session{
		ID:          uuid.New().String(),
		CorpusID:    corpusID,
		Seed:        opts.Seed,
		SeedTokens:  s.tokenize(gen, opts.Seed),
		Generated:   []string{},
		Order:       clampOrder(util.Deref(opts.Order, s.config.DefaultOrder)),
		Temperature: util.Deref(opts.Temperature, s.config.DefaultTemperature),
		CreatedAt:   time.Now(),
	}}
	snap := e.snapshot()

	s.mu.Lock()
	s.sessions[snap.ID] = e
	s.mu.Unlock()

	s.logger.Info("Created session",
		zap.String("session", snap.ID),
		zap.String("corpus", corpusID),
		zap.Int("order", snap.Order),
	)
	return snap, nil
}

func (s *SessionService) tokenize(gen *service.Generator, seed string) []string {
	tok := gen.Models().Tokenizer()
	tokens := tok.Tokenize(tok.Normalize(seed))
	if tokens == nil {
		tokens = []string{}
	}
	return tokens
}

// Get returns a snapshot of a session
func (s *SessionService) Get(id string) (Session, error) {
	e, err := s.get(id)
	if err != nil {
		return Session{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot(), nil
}

// List returns all sessions, oldest first
func (s *SessionService) List() []Session {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.sessions))
	for _, e := range s.sessions {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	out := make([]Session, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.snapshot())
		e.mu.Unlock()
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Delete stops any animation and removes the session
func (s *SessionService) Delete(id string) error {
	s.mu.Lock()
	e, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	e.mu.Lock()
	e.removed = true
	e.mu.Unlock()
	e.stopAnimation()
	return nil
}

// SetSeed replaces the seed text, dropping generated tokens and stopping any
// animation
func (s *SessionService) SetSeed(ctx context.Context, id, seed string) (Session, error) {
	e, err := s.get(id)
	if err != nil {
		return Session{}, err
	}
	e.stopAnimation()

	e.mu.Lock()
	defer e.mu.Unlock()

	gen, err := s.generator(ctx, e.session.CorpusID)
	if err != nil {
		return Session{}, err
	}
	e.session.Seed = seed
	e.session.SeedTokens = s.tokenize(gen, seed)
	e.session.Generated = []string{}
	return e.snapshot(), nil
}

// Update changes order and temperature. Generated tokens are kept.
func (s *SessionService) Update(id string, opts UpdateOptions) (Session, error) {
	e, err := s.get(id)
	if err != nil {
		return Session{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.session.Order = clampOrder(util.Deref(opts.Order, e.session.Order))
	e.session.Temperature = util.Deref(opts.Temperature, e.session.Temperature)
	return e.snapshot(), nil
}

// step must be called with e.mu held
func (s *SessionService) step(ctx context.Context, e *entry) (service.Step, bool, error) {
	gen, err := s.generator(ctx, e.session.CorpusID)
	if err != nil {
		return service.Step{}, false, err
	}

	step, ok := gen.NextToken(e.session.Output(), e.session.Order, e.session.Temperature)
	if !ok {
		return service.Step{}, false, nil
	}
	e.session.Generated = append(e.session.Generated, step.Token)
	return step, true, nil
}

// Step generates one token. The boolean is false when the models cannot
// produce any token, in which case the session is unchanged.
func (s *SessionService) Step(ctx context.Context, id string) (service.Step, bool, error) {
	e, err := s.get(id)
	if err != nil {
		return service.Step{}, false, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return s.step(ctx, e)
}

// GenerateMany generates up to n tokens, stopping early when no token can
// be produced
func (s *SessionService) GenerateMany(ctx context.Context, id string, n int) ([]service.Step, error) {
	e, err := s.get(id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	gen, err := s.generator(ctx, e.session.CorpusID)
	if err != nil {
		return nil, err
	}
	steps := gen.Generate(e.session.Output(), n, e.session.Order, e.session.Temperature)
	e.session.Generated = append(e.session.Generated, service.Tokens(steps)...)
	return steps, nil
}

// Clear resets the seed, generated tokens and generation parameters
func (s *SessionService) Clear(id string) (Session, error) {
	e, err := s.get(id)
	if err != nil {
		return Session{}, err
	}
	e.stopAnimation()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.session.Seed = ""
	e.session.SeedTokens = []string{}
	e.session.Generated = []string{}
	e.session.Order = clampOrder(s.config.DefaultOrder)
	e.session.Temperature = s.config.DefaultTemperature
	return e.snapshot(), nil
}

// Output returns the formatted seed and generated text
func (s *SessionService) Output(ctx context.Context, id string) (string, error) {
	e, err := s.get(id)
	if err != nil {
		return "", err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	gen, err := s.generator(ctx, e.session.CorpusID)
	if err != nil {
		return "", err
	}
	return gen.Models().Tokenizer().Format(e.session.Output()), nil
}

// Context returns the current token, what it resolves to and the candidates
// the next step would draw from
func (s *SessionService) Context(ctx context.Context, id string) (ContextView, error) {
	e, err := s.get(id)
	if err != nil {
		return ContextView{}, err
	}

	e.mu.Lock()
	output := e.session.Output()
	order := e.session.Order
	corpusID := e.session.CorpusID
	e.mu.Unlock()

	gen, err := s.generator(ctx, corpusID)
	if err != nil {
		return ContextView{}, err
	}

	var view ContextView
	if len(output) > 0 {
		view.CurrentToken = output[len(output)-1]
		if bigram, ok := gen.Models().Get(MinOrder); ok {
			view.ResolvedToken, _ = bigram.ResolveToken(view.CurrentToken)
		}
	}
	if res, ok := gen.Resolve(output, order); ok {
		view.Resolution = res
	}
	return view, nil
}

// StartAnimation generates one token per interval in the background,
// replacing any running animation. It stops by itself once no token can be
// produced. A non-positive interval uses the configured default.
func (s *SessionService) StartAnimation(id string, interval time.Duration) (Session, error) {
	e, err := s.get(id)
	if err != nil {
		return Session{}, err
	}
	if interval <= 0 {
		interval = s.config.AnimationInterval
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// The running animation may take the lock for its last step, so wait for
	// it unlocked and check again: another caller can install one meanwhile.
	for e.animation != nil {
		prev := e.animation
		e.animation = nil
		prev.cancel()
		e.mu.Unlock()
		<-prev.done
		e.mu.Lock()
	}
	if e.removed {
		return Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if s.baseCtx.Err() != nil {
		return e.snapshot(), nil
	}

	gen, err := s.generator(s.baseCtx, e.session.CorpusID)
	if err != nil {
		return Session{}, err
	}
	if gen.Models().IsEmpty() {
		return e.snapshot(), nil
	}

	ctx, cancel := context.WithCancel(s.baseCtx)
	anim := &animation{cancel: cancel, done: make(chan struct{})}
	e.animation = anim
	go s.animate(ctx, e, anim, interval)

	s.logger.Debug("Started animation", zap.String("session", id), zap.Duration("interval", interval))
	return e.snapshot(), nil
}

func (s *SessionService) animate(ctx context.Context, e *entry, anim *animation, interval time.Duration) {
	defer close(anim.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		e.mu.Lock()
		if ctx.Err() != nil {
			e.mu.Unlock()
			return
		}
		_, ok, err := s.step(ctx, e)
		if err != nil || !ok {
			if e.animation == anim {
				e.animation = nil
			}
			e.mu.Unlock()
			anim.cancel()
			if err != nil {
				s.logger.Warn("Animation stopped", zap.String("session", e.session.ID), zap.Error(err))
			}
			return
		}
		e.mu.Unlock()
	}
}

// StopAnimation stops a running animation. Stopping an idle session is a
// no-op.
func (s *SessionService) StopAnimation(id string) (Session, error) {
	e, err := s.get(id)
	if err != nil {
		return Session{}, err
	}
	e.stopAnimation()

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot(), nil
}

// stopAnimation cancels the animation and waits for its goroutine, so no
// token is appended after it returns
func (e *entry) stopAnimation() {
	e.mu.Lock()
	anim := e.animation
	e.animation = nil
	if anim != nil {
		anim.cancel()
	}
	e.mu.Unlock()

	if anim != nil {
		<-anim.done
	}
}

// Close stops every animation
func (s *SessionService) Close() {
	s.stop()

	s.mu.RLock()
	entries := make([]*entry, 0, len(s.sessions))
	for _, e := range s.sessions {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	for _, e := range entries {
		e.stopAnimation()
	}
}

// Candidates is a convenience for callers that only need the ranked
// continuations of a seed, without creating a session
func (s *SessionService) Candidates(ctx context.Context, corpusID, seed string, order int) (*service.Resolution, error) {
	if corpusID == "" {
		corpusID = s.catalog.DefaultID()
	}
	gen, err := s.generator(ctx, corpusID)
	if err != nil {
		return nil, err
	}
	res, ok := gen.Resolve(s.tokenize(gen, seed), clampOrder(order))
	if !ok {
		return &service.Resolution{Context: ngram.NGram{}, Candidates: []ngram.Candidate{}}, nil
	}
	return res, nil
}

// Complete generates n tokens after seed without creating a session and
// returns the formatted text
func (s *SessionService) Complete(ctx context.Context, corpusID, seed string, n, order int, temperature float64) (string, []service.Step, error) {
	if corpusID == "" {
		corpusID = s.catalog.DefaultID()
	}
	gen, err := s.generator(ctx, corpusID)
	if err != nil {
		return "", nil, err
	}
	tokens := s.tokenize(gen, seed)
	steps := gen.Generate(tokens, n, clampOrder(order), temperature)
	text := gen.Models().Tokenizer().Format(append(tokens, service.Tokens(steps)...))
	return text, steps, nil
}
