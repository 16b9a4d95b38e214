package usecase

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	cryptoService "github.com/allisson/fieldcrypt/internal/crypto/service"
	"github.com/allisson/fieldcrypt/internal/database"
	apperrors "github.com/allisson/fieldcrypt/internal/errors"
	recordDomain "github.com/allisson/fieldcrypt/internal/record/domain"
	rotationDomain "github.com/allisson/fieldcrypt/internal/rotation/domain"
)

// Config tunes a rotation run.
type Config struct {
	BatchSize            int
	BatchTimeout         time.Duration
	Workers              int
	BatchRetries         int
	MaxRecordsPerSec     float64
	ValidationSampleSize int
	ContinueOnBatchError bool
	RotationInterval     time.Duration
	RetentionPeriod      time.Duration
	UsageCeiling         int64
	Algorithm            cryptoDomain.Algorithm
}

// Option configures the rotation use case.
type Option func(*rotationUseCase)

// WithProgress publishes a status snapshot on every phase change and after every batch.
// Sends never block: snapshots are dropped when the channel is full.
func WithProgress(ch chan<- rotationDomain.RotationStatus) Option {
	return func(r *rotationUseCase) {
		r.progress = ch
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *rotationUseCase) {
		r.now = now
	}
}

// WithKeyMetadataRepository persists key metadata after every lifecycle change.
// txManager may be nil.
func WithKeyMetadataRepository(repo KeyMetadataRepository, txManager database.TxManager) Option {
	return func(r *rotationUseCase) {
		r.metadataRepo = repo
		r.txManager = txManager
	}
}

// rotationPlan is the outcome of the preparing phase.
type rotationPlan struct {
	candidate      *cryptoDomain.Key
	outgoing       *cryptoDomain.Key
	dropped        *cryptoDomain.Key
	swap           bool
	outgoingStatus cryptoDomain.KeyStatus
}

type rotationUseCase struct {
	engine       cryptoService.Engine
	keyStore     cryptoService.KeyStore
	validator    cryptoService.KeyValidator
	records      RecordStore
	registry     *recordDomain.FieldRegistry
	cfg          Config
	logger       *slog.Logger
	metadataRepo KeyMetadataRepository
	txManager    database.TxManager
	progress     chan<- rotationDomain.RotationStatus
	limiter      *rate.Limiter
	now          func() time.Time

	running atomic.Bool
	mu      sync.RWMutex
	status  rotationDomain.RotationStatus
}

// NewRotationUseCase creates the rotation manager for the secrets held by keyStore.
func NewRotationUseCase(
	engine cryptoService.Engine,
	keyStore cryptoService.KeyStore,
	validator cryptoService.KeyValidator,
	records RecordStore,
	registry *recordDomain.FieldRegistry,
	cfg Config,
	logger *slog.Logger,
	opts ...Option,
) RotationUseCase {
	if registry == nil {
		registry, _ = recordDomain.NewFieldRegistry()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BatchRetries < 0 {
		cfg.BatchRetries = 0
	}

	r := &rotationUseCase{
		engine:    engine,
		keyStore:  keyStore,
		validator: validator,
		records:   records,
		registry:  registry,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
		status:    rotationDomain.RotationStatus{Phase: rotationDomain.PhaseIdle},
	}
	if cfg.MaxRecordsPerSec > 0 {
		burst := int(cfg.MaxRecordsPerSec)
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(cfg.MaxRecordsPerSec), burst)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RotateKey runs the rotation state machine.
//
// newSecret is a base64 secret. When it equals the active secret the swap is skipped and only
// records still under the previous secret are migrated. When it equals the previous secret of a
// rolled back rotation that candidate is resumed.
//
// An empty newSecret generates a fresh key, unless the previous key still holds values. Then a
// rolled back candidate is resumed and a retired key is drained into the active key.
func (r *rotationUseCase) RotateKey(
	ctx context.Context,
	newSecret string,
) (*rotationDomain.RotationStatus, error) {
	if !r.running.CAS(false, true) {
		return nil, rotationDomain.ErrRotationInProgress
	}
	defer r.running.Store(false)

	prior := r.Status()
	r.update(func(s *rotationDomain.RotationStatus) {
		*s = rotationDomain.RotationStatus{
			ID:         uuid.Must(uuid.NewV7()),
			Phase:      rotationDomain.PhasePreparing,
			InProgress: true,
			StartedAt:  r.now().UTC(),
		}
	})

	plan, err := r.prepare(ctx, newSecret)
	if err != nil {
		r.update(func(s *rotationDomain.RotationStatus) { *s = prior })
		r.logger.ErrorContext(ctx, "rotation rejected", slog.Any("error", err))
		return nil, err
	}

	r.update(func(s *rotationDomain.RotationStatus) {
		s.Phase = rotationDomain.PhaseCounting
		s.ToKeyID = plan.candidate.ID()
		if plan.outgoing != nil {
			s.FromKeyID = plan.outgoing.ID()
		}
	})
	r.logger.InfoContext(ctx, "rotation started",
		slog.String("rotation_id", r.Status().ID.String()),
		slog.String("from_key_id", r.Status().FromKeyID),
		slog.String("to_key_id", plan.candidate.ID()),
		slog.Bool("swap", plan.swap),
	)

	activeMarker := cryptoDomain.VersionMarker(plan.candidate.Version())
	targets := r.registry.Targets()
	r.count(ctx, targets, activeMarker)

	if plan.swap {
		if err := r.keyStore.SwapAtomically(plan.candidate, plan.outgoing); err != nil {
			return r.rollback(ctx, plan, false, err)
		}
		plan.outgoing.MarkRotating()
		plan.candidate.MarkActive()
		if plan.dropped != nil {
			plan.dropped.Zero()
		}
	}
	r.update(func(s *rotationDomain.RotationStatus) { s.Phase = rotationDomain.PhaseKeySwapped })

	r.update(func(s *rotationDomain.RotationStatus) { s.Phase = rotationDomain.PhaseReEncrypting })
	if err := r.reEncrypt(ctx, targets, activeMarker); err != nil {
		return r.rollback(ctx, plan, plan.swap, err)
	}

	r.update(func(s *rotationDomain.RotationStatus) { s.Phase = rotationDomain.PhaseValidating })
	if err := r.validate(ctx, targets, plan.candidate); err != nil {
		return r.rollback(ctx, plan, plan.swap, err)
	}

	r.retireOutgoing(plan)
	if err := r.persist(ctx, plan.candidate, plan.outgoing); err != nil {
		return r.rollback(ctx, plan, plan.swap, fmt.Errorf("failed to persist key metadata: %w", err))
	}

	status := r.finish(rotationDomain.PhaseCompleted)
	r.logger.InfoContext(ctx, "rotation completed",
		slog.String("rotation_id", status.ID.String()),
		slog.String("active_key_id", plan.candidate.ID()),
		slog.Int64("total", status.Progress.Total),
		slog.Int64("processed", status.Progress.Processed),
		slog.Int64("failed", status.Progress.Failed),
		slog.Int("batch_errors", len(status.Errors)),
	)
	return &status, nil
}

// prepare resolves the candidate key without mutating anything.
func (r *rotationUseCase) prepare(ctx context.Context, newSecret string) (*rotationPlan, error) {
	active, err := r.keyStore.Active()
	if err != nil {
		return nil, err
	}
	previous := r.keyStore.Previous()

	var secret []byte
	if newSecret != "" {
		result := r.validator.Validate(newSecret)
		if !result.IsValid {
			return nil, fmt.Errorf("%w: %s", cryptoDomain.ErrValidationFailed, strings.Join(result.Issues, "; "))
		}
		secret, err = base64.StdEncoding.DecodeString(newSecret)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", cryptoDomain.ErrValidationFailed, err)
		}
	}

	switch {
	case secret != nil && sameSecret(secret, active):
		if active.Status() == cryptoDomain.KeyStatusCompromised {
			return nil, rotationDomain.ErrCompromisedCandidate
		}
		return &rotationPlan{candidate: active, outgoing: previous}, nil

	case secret != nil && sameSecret(secret, previous):
		if !rolledBack(active, previous) {
			return nil, fmt.Errorf("%w: %s", rotationDomain.ErrRetiredCandidate, previous.ID())
		}
		return r.resumePrevious(active, previous)
	}

	if previous != nil {
		inUse, err := r.holdsRecords(ctx, previous)
		if err != nil {
			return nil, err
		}
		switch {
		case inUse && secret == nil && rolledBack(active, previous):
			return r.resumePrevious(active, previous)
		case inUse && secret == nil:
			return &rotationPlan{candidate: active, outgoing: previous}, nil
		case inUse:
			return nil, fmt.Errorf("%w: %s", rotationDomain.ErrPreviousKeyInUse, previous.ID())
		}
	}

	version := active.Version()
	if previous != nil && previous.Version() > version {
		version = previous.Version()
	}
	taken, err := r.versionInUse(ctx, version+1)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, fmt.Errorf("%w: version %d", rotationDomain.ErrKeyVersionInUse, version+1)
	}

	if secret == nil {
		generated, err := r.validator.Generate()
		if err != nil {
			return nil, err
		}
		secret, err = base64.StdEncoding.DecodeString(generated)
		if err != nil {
			return nil, err
		}
	}

	alg := r.cfg.Algorithm
	if alg == "" {
		alg = active.Algorithm()
	}

	candidate := cryptoDomain.NewKey(secret, version+1, alg, r.now())
	candidate.SetStatus(cryptoDomain.KeyStatusRetired)

	return &rotationPlan{
		candidate:      candidate,
		outgoing:       active,
		dropped:        previous,
		swap:           true,
		outgoingStatus: active.Status(),
	}, nil
}

func (r *rotationUseCase) resumePrevious(active, previous *cryptoDomain.Key) (*rotationPlan, error) {
	if previous.Status() == cryptoDomain.KeyStatusCompromised {
		return nil, rotationDomain.ErrCompromisedCandidate
	}
	return &rotationPlan{
		candidate:      previous,
		outgoing:       active,
		swap:           true,
		outgoingStatus: active.Status(),
	}, nil
}

func sameSecret(secret []byte, key *cryptoDomain.Key) bool {
	return key != nil && subtle.ConstantTimeCompare(secret, key.Secret) == 1
}

// rolledBack reports whether previous is the candidate of a rotation that was rolled back.
// Candidates always take a version above the key they replace.
func rolledBack(active, previous *cryptoDomain.Key) bool {
	return previous.Version() > active.Version()
}

// holdsRecords reports whether any target still has values written under key.
func (r *rotationUseCase) holdsRecords(ctx context.Context, key *cryptoDomain.Key) (bool, error) {
	return r.versionInUse(ctx, key.Version())
}

// versionInUse reports whether any target has values written under version.
func (r *rotationUseCase) versionInUse(ctx context.Context, version uint) (bool, error) {
	marker := cryptoDomain.VersionMarker(version)
	for _, target := range r.registry.Targets() {
		n, err := r.records.CountWithMarker(ctx, target.EntityType, target.Field, marker)
		if err != nil {
			return false, fmt.Errorf("failed to count %s: %w", target, err)
		}
		if n > 0 {
			return true, nil
		}
	}
	return false, nil
}

func (r *rotationUseCase) count(ctx context.Context, targets []recordDomain.FieldSpec, activeMarker string) {
	var total int64
	for _, target := range targets {
		n, err := r.records.Count(ctx, target.EntityType, target.Field, activeMarker)
		if err != nil {
			r.logger.WarnContext(ctx, "failed to count pending records",
				slog.String("target", target.String()),
				slog.Any("error", err),
			)
			continue
		}
		total += n
	}
	r.update(func(s *rotationDomain.RotationStatus) { s.Progress.Total = total })
}

func (r *rotationUseCase) reEncrypt(ctx context.Context, targets []recordDomain.FieldSpec, activeMarker string) error {
	var failures []error
	for _, target := range targets {
		err := r.reEncryptTarget(ctx, target, activeMarker)
		if err == nil {
			continue
		}
		if !r.cfg.ContinueOnBatchError || ctx.Err() != nil {
			return err
		}
		failures = append(failures, err)
	}
	return apperrors.Join(failures...)
}

// reEncryptTarget migrates one column batch by batch until no pending value is left.
// A failed batch stops the column: its values would be fetched again.
func (r *rotationUseCase) reEncryptTarget(
	ctx context.Context,
	target recordDomain.FieldSpec,
	activeMarker string,
) error {
	for batch := 1; ; batch++ {
		fetched, processed, err := r.processBatch(ctx, target, activeMarker)

		r.update(func(s *rotationDomain.RotationStatus) {
			s.Progress.Processed += int64(processed)
			if err != nil {
				s.Progress.Failed += int64(fetched - processed)
				s.Errors = append(s.Errors, rotationDomain.BatchError{
					EntityType: target.EntityType,
					Field:      target.Field,
					Batch:      batch,
					Message:    err.Error(),
				})
			}
		})

		if err != nil {
			r.logger.ErrorContext(ctx, "re-encryption batch failed",
				slog.String("target", target.String()),
				slog.Int("batch", batch),
				slog.Int("fetched", fetched),
				slog.Int("processed", processed),
				slog.Any("error", err),
			)
			return fmt.Errorf("%w: %s batch %d: %w", rotationDomain.ErrBatchFailed, target, batch, err)
		}
		if fetched == 0 {
			return nil
		}
		r.logger.DebugContext(ctx, "re-encryption batch done",
			slog.String("target", target.String()),
			slog.Int("batch", batch),
			slog.Int("processed", processed),
		)
	}
}

// processBatch fetches one batch and re-encrypts it with a bounded worker pool.
func (r *rotationUseCase) processBatch(
	ctx context.Context,
	target recordDomain.FieldSpec,
	activeMarker string,
) (fetched, processed int, err error) {
	if r.cfg.BatchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.BatchTimeout)
		defer cancel()
	}

	values, err := retry.DoValue(ctx, r.backoff(), func(ctx context.Context) ([]*rotationDomain.StoredValue, error) {
		batch, err := r.records.FetchBatch(ctx, target.EntityType, target.Field, activeMarker, r.cfg.BatchSize)
		if err != nil {
			return nil, retry.RetryableError(err)
		}
		return batch, nil
	})
	if err != nil {
		return 0, 0, fmt.Errorf("failed to fetch batch: %w", err)
	}
	if len(values) == 0 {
		return 0, 0, nil
	}

	var done atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for _, value := range values {
		g.Go(func() error {
			if r.limiter != nil {
				if err := r.limiter.Wait(gctx); err != nil {
					return err
				}
			}
			if err := r.migrateValue(gctx, target, value); err != nil {
				return fmt.Errorf("record %s: %w", value.ID, err)
			}
			done.Inc()
			return nil
		})
	}
	err = g.Wait()
	return len(values), int(done.Load()), err
}

func (r *rotationUseCase) migrateValue(
	ctx context.Context,
	target recordDomain.FieldSpec,
	value *rotationDomain.StoredValue,
) error {
	payload, err := cryptoDomain.ParsePayload(value.Value)
	if err != nil {
		return err
	}
	plaintext, err := r.engine.Decrypt(payload)
	if err != nil {
		return err
	}
	defer cryptoDomain.Zero(plaintext)

	fresh, err := r.engine.Encrypt(plaintext, target.Field, r.registry.Searchable(target.EntityType, target.Field))
	if err != nil {
		return err
	}

	return retry.Do(ctx, r.backoff(), func(ctx context.Context) error {
		if err := r.records.WriteBack(ctx, target.EntityType, target.Field, value, fresh); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}

func (r *rotationUseCase) backoff() retry.Backoff {
	b := retry.NewExponential(50 * time.Millisecond)
	b = retry.WithCappedDuration(2*time.Second, b)
	return retry.WithMaxRetries(uint64(r.cfg.BatchRetries), b)
}

// validate decrypts a sample of every target with the candidate key only.
func (r *rotationUseCase) validate(
	ctx context.Context,
	targets []recordDomain.FieldSpec,
	candidate *cryptoDomain.Key,
) error {
	if r.cfg.ValidationSampleSize <= 0 {
		return nil
	}
	verify := func(value string) error {
		payload, err := cryptoDomain.ParsePayload(value)
		if err != nil {
			return err
		}
		if payload.KeyVersion != candidate.Version() {
			return fmt.Errorf("value still under key version %d", payload.KeyVersion)
		}
		plaintext, err := r.engine.DecryptWith(payload, candidate)
		if err != nil {
			return err
		}
		cryptoDomain.Zero(plaintext)
		return nil
	}

	for _, target := range targets {
		checked, err := r.records.ValidateSample(ctx, target.EntityType, target.Field, r.cfg.ValidationSampleSize, verify)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", rotationDomain.ErrValidationSampleFailed, target, err)
		}
		r.logger.DebugContext(ctx, "validation sample passed",
			slog.String("target", target.String()),
			slog.Int("checked", checked),
		)
	}
	return nil
}

func (r *rotationUseCase) retireOutgoing(plan *rotationPlan) {
	outgoing := plan.outgoing
	if outgoing == nil {
		return
	}
	status := outgoing.Status()
	if plan.swap {
		status = plan.outgoingStatus
	} else if status == cryptoDomain.KeyStatusRetired && outgoing.Metadata().ExpiresAt != nil {
		return
	}

	outgoing.MarkRetired(r.now(), r.cfg.RetentionPeriod)
	if status == cryptoDomain.KeyStatusCompromised {
		outgoing.SetStatus(cryptoDomain.KeyStatusCompromised)
	}
}

// rollback puts the pre-rotation key back in front. The candidate stays as previous so
// values already migrated to it remain decryptable.
func (r *rotationUseCase) rollback(
	ctx context.Context,
	plan *rotationPlan,
	swapped bool,
	cause error,
) (*rotationDomain.RotationStatus, error) {
	if swapped {
		if err := r.keyStore.SwapAtomically(plan.outgoing, plan.candidate); err != nil {
			r.logger.ErrorContext(ctx, "failed to restore key pointers", slog.Any("error", err))
		}
		if plan.outgoingStatus == cryptoDomain.KeyStatusActive {
			plan.outgoing.MarkActive()
		} else {
			plan.outgoing.SetStatus(plan.outgoingStatus)
		}
		plan.candidate.SetStatus(cryptoDomain.KeyStatusRetired)
	}
	if err := r.persist(ctx, plan.outgoing, plan.candidate); err != nil {
		r.logger.ErrorContext(ctx, "failed to persist key metadata after rollback", slog.Any("error", err))
	}

	status := r.finish(rotationDomain.PhaseRolledBack)
	r.logger.ErrorContext(ctx, "rotation rolled back",
		slog.String("rotation_id", status.ID.String()),
		slog.Int64("processed", status.Progress.Processed),
		slog.Int64("failed", status.Progress.Failed),
		slog.Any("error", cause),
	)
	return &status, fmt.Errorf("%w: %w", rotationDomain.ErrRotationFailed, cause)
}

// ShouldRotate reports whether the active key is due for rotation.
func (r *rotationUseCase) ShouldRotate(ctx context.Context) (bool, string) {
	active, err := r.keyStore.Active()
	if err != nil {
		return true, err.Error()
	}
	now := r.now()
	md := active.Metadata()

	switch {
	case md.Status == cryptoDomain.KeyStatusCompromised:
		return true, "active key is compromised"
	case r.cfg.RotationInterval > 0 && active.Age(now) > r.cfg.RotationInterval:
		return true, fmt.Sprintf("active key age %s exceeds rotation interval %s",
			active.Age(now).Round(time.Second), r.cfg.RotationInterval)
	case r.cfg.UsageCeiling > 0 && md.Usage.Encryptions > r.cfg.UsageCeiling:
		return true, fmt.Sprintf("active key used for %d encryptions, ceiling is %d",
			md.Usage.Encryptions, r.cfg.UsageCeiling)
	}
	return false, ""
}

// RevokeKey marks the active key compromised and rotates away from it. When the previous key
// still holds values they are drained first so it can be dropped.
func (r *rotationUseCase) RevokeKey(ctx context.Context, reason string) (*rotationDomain.RotationStatus, error) {
	if r.running.Load() {
		return nil, rotationDomain.ErrRotationInProgress
	}
	active, err := r.keyStore.Active()
	if err != nil {
		return nil, err
	}

	active.MarkCompromised()
	if err := r.persist(ctx, active); err != nil {
		return nil, fmt.Errorf("failed to persist key metadata: %w", err)
	}
	r.logger.WarnContext(ctx, "active key revoked",
		slog.String("key_id", active.ID()),
		slog.String("reason", reason),
	)

	status, err := r.RotateKey(ctx, "")
	if err != nil {
		return status, err
	}
	if current, err := r.keyStore.Active(); err == nil && current == active {
		r.logger.InfoContext(ctx, "previous key drained, rotating away from revoked key",
			slog.String("key_id", active.ID()),
		)
		return r.RotateKey(ctx, "")
	}
	return status, nil
}

// PruneRetired drops the previous key once its retention window passed and no value is
// still encrypted under it.
func (r *rotationUseCase) PruneRetired(ctx context.Context, now time.Time) (bool, error) {
	if !r.running.CAS(false, true) {
		return false, rotationDomain.ErrRotationInProgress
	}
	defer r.running.Store(false)

	previous := r.keyStore.Previous()
	if previous == nil {
		return false, rotationDomain.ErrNoPreviousKey
	}
	if !previous.Expired(now) {
		return false, nil
	}

	inUse, err := r.holdsRecords(ctx, previous)
	if err != nil {
		return false, err
	}
	if inUse {
		return false, fmt.Errorf("%w: %s", rotationDomain.ErrPreviousKeyInUse, previous.ID())
	}

	active, err := r.keyStore.Active()
	if err != nil {
		return false, err
	}
	if err := r.keyStore.SwapAtomically(active, nil); err != nil {
		return false, err
	}
	previous.Zero()

	r.logger.InfoContext(ctx, "retired key pruned", slog.String("key_id", previous.ID()))
	return true, nil
}

// SyncMetadata restores persisted lifecycle data of the held keys, then saves them.
// The key store decides which key is active.
func (r *rotationUseCase) SyncMetadata(ctx context.Context) error {
	if r.metadataRepo == nil {
		return nil
	}
	active, err := r.keyStore.Active()
	if err != nil {
		return err
	}
	previous := r.keyStore.Previous()

	for _, key := range []*cryptoDomain.Key{active, previous} {
		if key == nil {
			continue
		}
		md, err := r.metadataRepo.Get(ctx, key.ID())
		if err != nil {
			if apperrors.Is(err, apperrors.ErrNotFound) {
				continue
			}
			return err
		}
		key.Restore(*md)
	}

	switch active.Status() {
	case cryptoDomain.KeyStatusActive, cryptoDomain.KeyStatusCompromised:
	default:
		active.MarkActive()
	}
	if previous != nil {
		switch previous.Status() {
		case cryptoDomain.KeyStatusActive, cryptoDomain.KeyStatusRotating:
			previous.SetStatus(cryptoDomain.KeyStatusRetired)
		}
	}

	return r.persist(ctx, active, previous)
}

// Status returns a snapshot of the current or last rotation.
func (r *rotationUseCase) Status() rotationDomain.RotationStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status.Clone()
}

func (r *rotationUseCase) persist(ctx context.Context, keys ...*cryptoDomain.Key) error {
	if r.metadataRepo == nil {
		return nil
	}
	save := func(ctx context.Context) error {
		for _, key := range keys {
			if key == nil {
				continue
			}
			md := key.Metadata()
			if err := r.metadataRepo.Save(ctx, &md); err != nil {
				return err
			}
		}
		return nil
	}
	if r.txManager == nil {
		return save(ctx)
	}
	return r.txManager.WithTx(ctx, save)
}

func (r *rotationUseCase) finish(phase rotationDomain.Phase) rotationDomain.RotationStatus {
	return r.update(func(s *rotationDomain.RotationStatus) {
		completedAt := r.now().UTC()
		s.Phase = phase
		s.InProgress = false
		s.CompletedAt = &completedAt
	})
}

// update applies fn to the status and publishes the result.
func (r *rotationUseCase) update(fn func(s *rotationDomain.RotationStatus)) rotationDomain.RotationStatus {
	r.mu.Lock()
	fn(&r.status)
	snapshot := r.status.Clone()
	r.mu.Unlock()

	if r.progress != nil {
		select {
		case r.progress <- snapshot:
		default:
		}
	}
	return snapshot
}
