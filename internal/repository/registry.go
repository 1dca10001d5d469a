// Package repository holds the artifact registry: the single source of
// truth mapping artifact ids to storage location and owner.
package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"github.com/HikariJones/Inclusive-AI-UMKM/internal/common"
	"github.com/HikariJones/Inclusive-AI-UMKM/internal/entity"
)

// ArtifactRegistry maps artifact ids to owner and storage location. Entries
// are append-only from the pipeline's point of view; no artifact is
// reachable without a matching entry.
type ArtifactRegistry interface {
	// Register issues a new id and persists the entry. The artifact bytes
	// must already be durably stored at location before this is called.
	Register(ctx context.Context, owner, location string, createdAt time.Time) (*entity.Artifact, error)

	// Get returns the entry for id if owner matches. Unknown ids and
	// foreign owners both yield common.ErrNotFound so existence does not
	// leak across principals.
	Get(ctx context.Context, owner string, id uuid.UUID) (*entity.Artifact, error)

	// ListByOwner returns the owner's artifacts, newest first.
	ListByOwner(ctx context.Context, owner string) ([]*entity.Artifact, error)

	Close() error
}

const (
	artifactBucket = "artifacts"
	ownerBucket    = "owner_index"
)

type boltRegistry struct {
	db     *bbolt.DB
	logger *slog.Logger
}

// NewBoltRegistry opens (or creates) the registry database file.
func NewBoltRegistry(path string, logger *slog.Logger) (ArtifactRegistry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening registry db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(artifactBucket)); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists([]byte(ownerBucket))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating registry buckets: %w", err)
	}

	return &boltRegistry{db: db, logger: logger}, nil
}

type entryRecord struct {
	ID        string    `json:"id"`
	Owner     string    `json:"owner"`
	Location  string    `json:"location"`
	CreatedAt time.Time `json:"created_at"`
}

func (r *boltRegistry) Register(ctx context.Context, owner, location string, createdAt time.Time) (*entity.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if owner == "" || location == "" {
		return nil, common.NewAppError("REGISTRY_INVALID", "owner and location are required", common.ErrInvalidInput)
	}

	art := &entity.Artifact{
		ID:        uuid.New(),
		Owner:     owner,
		Location:  location,
		CreatedAt: createdAt.UTC(),
	}
	rec := entryRecord{
		ID:        art.ID.String(),
		Owner:     art.Owner,
		Location:  art.Location,
		CreatedAt: art.CreatedAt,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal registry entry: %w", err)
	}

	err = r.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket([]byte(artifactBucket)).Put([]byte(rec.ID), data); err != nil {
			return err
		}
		return tx.Bucket([]byte(ownerBucket)).Put(ownerKey(owner, art.CreatedAt, rec.ID), nil)
	})
	if err != nil {
		r.logger.Error("registry.register.failed", "owner", owner, "error", err)
		return nil, fmt.Errorf("register artifact: %w", err)
	}

	r.logger.Info("registry.register.ok", "artifact_id", rec.ID, "owner", owner, "location", location)
	return art, nil
}

func (r *boltRegistry) Get(_ context.Context, owner string, id uuid.UUID) (*entity.Artifact, error) {
	var rec entryRecord
	err := r.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(artifactBucket)).Get([]byte(id.String()))
		if data == nil {
			return common.ErrNotFound
		}
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return nil, err
	}
	// Owner mismatch reads exactly like a missing id.
	if rec.Owner != owner {
		return nil, common.ErrNotFound
	}
	return recToArtifact(rec)
}

func (r *boltRegistry) ListByOwner(_ context.Context, owner string) ([]*entity.Artifact, error) {
	var out []*entity.Artifact
	prefix := append([]byte(owner), 0)
	err := r.db.View(func(tx *bbolt.Tx) error {
		arts := tx.Bucket([]byte(artifactBucket))
		c := tx.Bucket([]byte(ownerBucket)).Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			id := idFromOwnerKey(k)
			data := arts.Get(id)
			if data == nil {
				continue
			}
			var rec entryRecord
			if err := json.Unmarshal(data, &rec); err != nil {
				return fmt.Errorf("decode registry entry %s: %w", id, err)
			}
			art, err := recToArtifact(rec)
			if err != nil {
				return err
			}
			out = append(out, art)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *boltRegistry) Close() error { return r.db.Close() }

// ownerKey sorts an owner's entries newest first under a cursor scan: the
// creation time is inverted before being zero-padded. NUL separators keep
// one owner's prefix from matching another owner's keys.
func ownerKey(owner string, createdAt time.Time, id string) []byte {
	inv := uint64(math.MaxInt64 - createdAt.UnixNano())
	k := append([]byte(owner), 0)
	k = append(k, []byte(fmt.Sprintf("%020d", inv))...)
	k = append(k, 0)
	return append(k, []byte(id)...)
}

func idFromOwnerKey(k []byte) []byte {
	i := bytes.LastIndexByte(k, 0)
	return k[i+1:]
}

func recToArtifact(rec entryRecord) (*entity.Artifact, error) {
	id, err := uuid.Parse(rec.ID)
	if err != nil {
		return nil, fmt.Errorf("corrupt registry id %q: %w", rec.ID, err)
	}
	return &entity.Artifact{
		ID:        id,
		Owner:     rec.Owner,
		Location:  rec.Location,
		CreatedAt: rec.CreatedAt,
	}, nil
}
