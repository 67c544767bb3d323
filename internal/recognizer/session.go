// Package recognizer ties an encoding database, its persistence backend and the
// matcher together into an explicit recognition session. Commands and HTTP
// handlers receive a *Session instead of reaching for process-wide state.
package recognizer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/facedb/internal/database"
	"github.com/kozaktomas/facedb/internal/facematch"
	"github.com/kozaktomas/facedb/internal/persistence"
	"go.uber.org/zap"
)

// Options configures a new session.
type Options struct {
	Dim       int     // embedding dimension, defaults to database.DefaultDim
	Tolerance float64 // accept threshold, defaults to database.DefaultTolerance
	AutoSave  bool    // persist after every successful mutation
	Logger    *zap.Logger
}

// Session is one recognition context: a store, where it is persisted and how.
type Session struct {
	ID uuid.UUID

	store     database.IdentityWriter
	persister persistence.Store
	logger    *zap.Logger
	autoSave  bool

	// saveMu serializes saves so the last writer always persists the newest snapshot.
	saveMu    sync.Mutex
	lastSaved time.Time
	// corrupt holds the last load error when the persisted database could not
	// be decoded. Saves are refused while it is set so the bad data stays
	// available for inspection until Overwrite is called.
	corrupt error
}

// ErrSaveBlocked is returned by Save while the persisted database is corrupt.
var ErrSaveBlocked = errors.New("persisted database is corrupt, refusing to overwrite it")

// IdentitySummary is a listing entry: the name and how many embeddings it holds.
type IdentitySummary struct {
	Name       string `json:"name"`
	Embeddings int    `json:"embeddings"`
}

// Recognition is the outcome of one recognize call.
type Recognition struct {
	ID         uuid.UUID
	Tolerance  float64
	Identities int
	Faces      []facematch.FaceResult
}

// RecognizedCount returns how many faces matched an identity.
func (r *Recognition) RecognizedCount() int {
	n := 0
	for _, f := range r.Faces {
		if f.Recognized() {
			n++
		}
	}
	return n
}

// NewSession creates an empty session persisted through persister.
func NewSession(persister persistence.Store, opts Options) (*Session, error) {
	if persister == nil {
		return nil, errors.New("persistence store is required")
	}
	if opts.Dim == 0 {
		opts.Dim = database.DefaultDim
	}
	if opts.Tolerance == 0 {
		opts.Tolerance = database.DefaultTolerance
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	store, err := database.NewStore(opts.Dim, opts.Tolerance)
	if err != nil {
		return nil, fmt.Errorf("creating store: %w", err)
	}

	id := uuid.New()
	return &Session{
		ID:        id,
		store:     store,
		persister: persister,
		logger:    opts.Logger.With(zap.String("session", id.String())),
		autoSave:  opts.AutoSave,
	}, nil
}

// Snapshot returns the current read-only view of the database.
func (s *Session) Snapshot() *database.Snapshot {
	return s.store.Snapshot()
}

// Dim returns the embedding dimension.
func (s *Session) Dim() int {
	return s.store.Dim()
}

// Tolerance returns the current accept threshold.
func (s *Session) Tolerance() float64 {
	return s.store.Tolerance()
}

// Len returns the number of enrolled identities.
func (s *Session) Len() int {
	return s.store.Len()
}

// Backend describes where the session is persisted.
func (s *Session) Backend() string {
	return s.persister.Describe()
}

// LastSaved returns when the session was last saved or loaded, zero if never.
func (s *Session) LastSaved() time.Time {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	return s.lastSaved
}

// Enroll registers or retrains an identity. With auto-save enabled a failed
// save is returned but the enrollment stays applied in memory.
func (s *Session) Enroll(ctx context.Context, name string, embeddings []database.Vector) (bool, error) {
	changed, err := s.store.Enroll(name, embeddings)
	if err != nil {
		return false, err
	}
	if !changed {
		s.logger.Debug("enrollment unchanged", zap.String("name", database.NormalizeName(name)))
		return false, nil
	}

	s.logger.Info("identity enrolled",
		zap.String("name", database.NormalizeName(name)),
		zap.Int("embeddings", len(embeddings)))
	return true, s.autoPersist(ctx)
}

// Remove deletes an identity.
func (s *Session) Remove(ctx context.Context, name string) error {
	if err := s.store.Remove(name); err != nil {
		return err
	}
	s.logger.Info("identity removed", zap.String("name", database.NormalizeName(name)))
	return s.autoPersist(ctx)
}

// Get returns a copy of the named identity.
func (s *Session) Get(name string) (database.IdentityRecord, error) {
	return s.store.Get(name)
}

// List returns every identity in enrollment order with its embedding count.
func (s *Session) List() []IdentitySummary {
	snap := s.store.Snapshot()
	out := make([]IdentitySummary, 0, snap.Len())
	snap.Range(func(_ int, rec database.IdentityRecord) bool {
		out = append(out, IdentitySummary{Name: rec.Name, Embeddings: len(rec.Embeddings)})
		return true
	})
	return out
}

// SetTolerance changes the accept threshold.
func (s *Session) SetTolerance(ctx context.Context, tolerance float64) error {
	if err := s.store.SetTolerance(tolerance); err != nil {
		return err
	}
	s.logger.Info("tolerance changed", zap.Float64("tolerance", tolerance))
	return s.autoPersist(ctx)
}

// Recognize matches every face independently against one consistent snapshot.
func (s *Session) Recognize(faces []facematch.Face) (*Recognition, error) {
	return s.recognize(s.store.Snapshot(), faces)
}

// RecognizeWithTolerance matches like Recognize but with a one-off tolerance.
// The stored tolerance is left untouched.
func (s *Session) RecognizeWithTolerance(faces []facematch.Face, tolerance float64) (*Recognition, error) {
	snap := s.store.Snapshot()
	view, err := database.NewSnapshot(snap.Dim(), tolerance, snap.Records())
	if err != nil {
		return nil, err
	}
	return s.recognize(view, faces)
}

func (s *Session) recognize(snap *database.Snapshot, faces []facematch.Face) (*Recognition, error) {
	results, err := facematch.MatchFaces(snap, faces)
	if err != nil {
		return nil, err
	}

	rec := &Recognition{
		ID:         uuid.New(),
		Tolerance:  snap.Tolerance(),
		Identities: snap.Len(),
		Faces:      results,
	}
	s.logger.Debug("recognized faces",
		zap.String("recognition", rec.ID.String()),
		zap.Int("faces", len(results)),
		zap.Int("recognized", rec.RecognizedCount()))
	return rec, nil
}

// Corrupt returns the decoding error of the last load, or nil when the
// persisted database was readable or absent.
func (s *Session) Corrupt() error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	return s.corrupt
}

// Save persists the current snapshot. It fails with ErrSaveBlocked (wrapped
// in database.ErrIO) while the persisted database is corrupt.
func (s *Session) Save(ctx context.Context) error {
	return s.save(ctx, false)
}

// Overwrite persists the current snapshot even over a corrupt database.
func (s *Session) Overwrite(ctx context.Context) error {
	return s.save(ctx, true)
}

func (s *Session) save(ctx context.Context, force bool) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	if s.corrupt != nil && !force {
		return fmt.Errorf("%w: %w (%v)", database.ErrIO, ErrSaveBlocked, s.corrupt)
	}

	snap := s.store.Snapshot()
	if err := s.persister.Save(ctx, snap); err != nil {
		s.logger.Error("saving database failed",
			zap.String("backend", s.persister.Describe()),
			zap.Error(err))
		return err
	}
	if s.corrupt != nil {
		s.logger.Warn("corrupt database overwritten", zap.NamedError("previous", s.corrupt))
		s.corrupt = nil
	}
	s.lastSaved = time.Now()
	s.logger.Info("database saved",
		zap.String("backend", s.persister.Describe()),
		zap.Int("identities", snap.Len()))
	return nil
}

// Load replaces the in-memory database with the persisted one. It reports false
// when nothing was persisted yet; the session then keeps its current state.
// On corruption the current state is kept as well, the error is returned and
// saves are blocked until a later load succeeds or Overwrite is called.
func (s *Session) Load(ctx context.Context) (bool, error) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	snap, err := s.persister.Load(ctx, s.store.Dim())
	if errors.Is(err, database.ErrNotFound) {
		s.corrupt = nil
		s.logger.Info("no saved database, starting empty",
			zap.String("backend", s.persister.Describe()))
		return false, nil
	}
	if err == nil {
		if rerr := s.store.Replace(snap); rerr != nil {
			err = fmt.Errorf("%w: %w", database.ErrDeserialization, rerr)
		}
	}
	if err != nil {
		if errors.Is(err, database.ErrDeserialization) {
			s.corrupt = err
		}
		s.logger.Error("loading database failed",
			zap.String("backend", s.persister.Describe()),
			zap.Error(err))
		return false, err
	}

	s.corrupt = nil
	s.lastSaved = time.Now()
	s.logger.Info("database loaded",
		zap.String("backend", s.persister.Describe()),
		zap.Int("identities", snap.Len()),
		zap.Float64("tolerance", snap.Tolerance()))
	return true, nil
}

func (s *Session) autoPersist(ctx context.Context) error {
	if !s.autoSave {
		return nil
	}
	if err := s.Save(ctx); err != nil {
		if errors.Is(err, database.ErrIO) {
			return fmt.Errorf("auto-save: %w", err)
		}
		return fmt.Errorf("auto-save: %w: %w", database.ErrIO, err)
	}
	return nil
}
