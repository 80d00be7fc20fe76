package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	pkgerrors "github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/totegamma/memories/internal/domain"
	"github.com/totegamma/memories/internal/infra/kv"
	"github.com/totegamma/memories/internal/infra/observability"
)

var tracer = otel.Tracer("memory")

var errCorruptCollection = errors.New("corrupt collection")

const maxQuarantineAttempts = 3

// MemoryRepository stores the whole memory collection as one JSON array
// under a single key. Every mutation is one atomic read-modify-write of
// that key.
type MemoryRepository struct {
	store    kv.Store
	key      string
	metrics  *observability.Collector
	validate *validator.Validate
	now      func() time.Time
}

func NewMemoryRepository(store kv.Store, key string, metrics *observability.Collector) *MemoryRepository {
	if key == "" {
		key = domain.DefaultCollectionKey
	}
	return &MemoryRepository{
		store:    store,
		key:      key,
		metrics:  metrics,
		validate: validator.New(),
		now:      time.Now,
	}
}

// List returns the collection in storage order. When the stored value
// cannot be read or decoded it returns what could be decoded (possibly
// nothing) together with a *domain.StorageReadError so callers can choose
// to carry on.
func (r *MemoryRepository) List(ctx context.Context) ([]domain.MemoryRecord, error) {
	ctx, span := tracer.Start(ctx, "Memory.Repository.List")
	defer span.End()

	raw, err := r.store.Get(ctx, r.key)
	if errors.Is(err, kv.ErrNotFound) {
		return []domain.MemoryRecord{}, nil
	}
	if err != nil {
		return []domain.MemoryRecord{}, r.readFailed(ctx, span, err)
	}

	records, bad, err := decodeCollection(raw)
	if err != nil {
		return []domain.MemoryRecord{}, r.readFailed(ctx, span, err)
	}
	if bad > 0 {
		return records, r.readFailed(ctx, span, fmt.Errorf("%d undecodable records skipped", bad))
	}

	span.SetAttributes(attribute.Int("count", len(records)))
	return records, nil
}

func (r *MemoryRepository) Get(ctx context.Context, id string) (domain.MemoryRecord, error) {
	ctx, span := tracer.Start(ctx, "Memory.Repository.Get")
	defer span.End()

	records, err := r.List(ctx)
	if err != nil {
		return domain.MemoryRecord{}, err
	}
	for _, record := range records {
		if record.ID == id {
			return record, nil
		}
	}
	return domain.MemoryRecord{}, domain.NotFoundError{Resource: "memory"}
}

// Append adds the record at the end of the collection. Records with an id
// already present are rejected with domain.ErrDuplicateID.
func (r *MemoryRepository) Append(ctx context.Context, record domain.MemoryRecord) error {
	ctx, span := tracer.Start(ctx, "Memory.Repository.Append")
	defer span.End()
	span.SetAttributes(attribute.String("id", record.ID))

	if err := r.validate.Struct(record); err != nil {
		span.RecordError(err)
		return &domain.ValidationError{Err: err}
	}

	return r.mutate(ctx, span, func(records []domain.MemoryRecord) ([]domain.MemoryRecord, bool, error) {
		for _, existing := range records {
			if existing.ID == record.ID {
				return nil, false, domain.ConflictError{Resource: "memory", ID: record.ID}
			}
		}
		return append(records, record), true, nil
	})
}

// Delete removes every record with the given id. It reports whether
// anything was removed; a missing id is not an error.
func (r *MemoryRepository) Delete(ctx context.Context, id string) (bool, error) {
	ctx, span := tracer.Start(ctx, "Memory.Repository.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("id", id))

	removed := false
	err := r.mutate(ctx, span, func(records []domain.MemoryRecord) ([]domain.MemoryRecord, bool, error) {
		kept := make([]domain.MemoryRecord, 0, len(records))
		for _, record := range records {
			if record.ID != id {
				kept = append(kept, record)
			}
		}
		removed = len(kept) != len(records)
		return kept, removed, nil
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

// EditDescription replaces the description of one record. It reports
// whether the stored collection changed: a missing id or an identical
// description leave it untouched.
func (r *MemoryRepository) EditDescription(ctx context.Context, id, description string) (bool, error) {
	ctx, span := tracer.Start(ctx, "Memory.Repository.EditDescription")
	defer span.End()
	span.SetAttributes(attribute.String("id", id))

	found, changed := false, false
	err := r.mutate(ctx, span, func(records []domain.MemoryRecord) ([]domain.MemoryRecord, bool, error) {
		found, changed = false, false
		for i := range records {
			if records[i].ID != id {
				continue
			}
			found = true
			if records[i].DescriptionEquals(description) {
				return nil, false, nil
			}
			records[i].Description = &description
			changed = true
			return records, true, nil
		}
		return nil, false, nil
	})
	if err != nil {
		return false, err
	}

	if !found {
		slog.WarnContext(
			ctx, "memory to edit not found",
			slog.String("id", id),
			slog.String("module", "memory"),
		)
	}
	return changed, nil
}

// Clear drops the whole collection.
func (r *MemoryRepository) Clear(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Memory.Repository.Clear")
	defer span.End()

	if err := r.store.Delete(ctx, r.key); err != nil {
		return r.writeFailed(ctx, span, err)
	}
	return nil
}

type mutation func(records []domain.MemoryRecord) (next []domain.MemoryRecord, write bool, err error)

// mutate applies fn to the decoded collection inside one kv update. A
// collection with undecodable content is copied to a quarantine key first,
// then rewritten with the records that did decode even when fn changes
// nothing, so the same blob is never quarantined twice.
func (r *MemoryRepository) mutate(ctx context.Context, span trace.Span, fn mutation) error {
	var quarantined []byte

	for attempt := 0; attempt < maxQuarantineAttempts; attempt++ {
		var corrupt []byte
		var rejected error

		err := r.store.Update(ctx, r.key, func(current []byte, exists bool) ([]byte, bool, error) {
			corrupt, rejected = nil, nil

			records := []domain.MemoryRecord{}
			repair := false
			if exists {
				decoded, bad, err := decodeCollection(current)
				if err == nil {
					records = decoded
				}
				if err != nil || bad > 0 {
					if quarantined == nil || !bytes.Equal(current, quarantined) {
						corrupt = current
						return nil, false, errCorruptCollection
					}
					// already moved aside: keep what decoded and replace the blob
					repair = true
				}
			}

			next, write, err := fn(records)
			if err != nil {
				rejected = err
				if !repair {
					return nil, false, err
				}
				next, write = records, true
			}
			if !write {
				if !repair {
					return nil, false, nil
				}
				next = records
			}

			encoded, err := encodeCollection(next)
			if err != nil {
				rejected = err
				return nil, false, err
			}
			return encoded, true, nil
		})

		switch {
		case rejected != nil:
			span.RecordError(rejected)
			return rejected
		case err == nil:
			return nil
		case corrupt != nil:
			if qerr := r.quarantine(ctx, span, corrupt); qerr != nil {
				return qerr
			}
			quarantined = corrupt
		default:
			return r.writeFailed(ctx, span, err)
		}
	}

	return r.writeFailed(ctx, span, errCorruptCollection)
}

func (r *MemoryRepository) quarantine(ctx context.Context, span trace.Span, corrupt []byte) error {
	backupKey := fmt.Sprintf("%s.corrupt.%d", r.key, r.now().UnixNano())

	if err := r.store.Set(ctx, backupKey, corrupt); err != nil {
		return r.writeFailed(ctx, span, pkgerrors.Wrap(err, "quarantine corrupt collection"))
	}

	r.metrics.QuarantinedBlobs.Inc()
	span.AddEvent("memory.collection.quarantined", trace.WithAttributes(attribute.String("backupKey", backupKey)))
	slog.ErrorContext(
		ctx, "undecodable memory collection moved aside",
		slog.String("key", r.key),
		slog.String("backupKey", backupKey),
		slog.String("module", "memory"),
	)
	return nil
}

func (r *MemoryRepository) readFailed(ctx context.Context, span trace.Span, err error) error {
	readErr := &domain.StorageReadError{Key: r.key, Err: err}
	r.metrics.StorageReadErrors.Inc()
	span.RecordError(readErr)
	span.AddEvent("memory.collection.discarded")
	slog.ErrorContext(
		ctx, "failed to read memory collection",
		slog.String("error", err.Error()),
		slog.String("key", r.key),
		slog.String("module", "memory"),
	)
	return readErr
}

func (r *MemoryRepository) writeFailed(ctx context.Context, span trace.Span, err error) error {
	writeErr := &domain.StorageWriteError{Key: r.key, Err: err}
	r.metrics.StorageWriteErrors.Inc()
	span.RecordError(writeErr)
	slog.ErrorContext(
		ctx, "failed to write memory collection",
		slog.String("error", err.Error()),
		slog.String("key", r.key),
		slog.String("module", "memory"),
	)
	return writeErr
}
