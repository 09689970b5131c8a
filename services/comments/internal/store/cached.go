package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/example/quotation-comments/internal/platform/metrics"
)

const (
	documentKeyPrefix = "comments:doc:"
	versionKeyPrefix  = "comments:docver:"
)

// CachedCommentStore caches whole-document listings in Redis. Section queries
// always go to the underlying store. Entries are keyed by a per-document
// version that every successful mutation increments, so a listing read
// before a mutation can only land under a version nobody reads any more.
// Redis failures degrade to a pass-through read.
type CachedCommentStore struct {
	next    CommentStore
	client  *redis.Client
	ttl     time.Duration
	log     *zap.Logger
	metrics *metrics.Metrics
}

// NewCachedCommentStore wraps next. A ttl <= 0 defaults to one minute.
func NewCachedCommentStore(next CommentStore, client *redis.Client, ttl time.Duration, log *zap.Logger, m *metrics.Metrics) *CachedCommentStore {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CachedCommentStore{next: next, client: client, ttl: ttl, log: log, metrics: m}
}

// NewRedisClient parses url (redis://...) and pings the server.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func documentKey(documentID string, version int64) string {
	return documentKeyPrefix + documentID + ":" + strconv.FormatInt(version, 10)
}

// versionKey has no expiry; losing it would resurrect entries cached under
// an older version.
func versionKey(documentID string) string {
	return versionKeyPrefix + documentID
}

func (s *CachedCommentStore) Query(ctx context.Context, documentID, sectionID string) ([]Comment, error) {
	return s.next.Query(ctx, documentID, sectionID)
}

func (s *CachedCommentStore) QueryDocument(ctx context.Context, documentID string) ([]Comment, error) {
	// The version is read before the backing store so that a mutation
	// committed during the read moves readers to a newer key.
	version, err := s.client.Get(ctx, versionKey(documentID)).Int64()
	if errors.Is(err, redis.Nil) {
		version, err = 0, nil
	}
	if err != nil {
		s.log.Warn("comments cache: version lookup failed", zap.String("document_id", documentID), zap.Error(err))
		s.metrics.CacheLookup(false)
		return s.next.QueryDocument(ctx, documentID)
	}

	key := documentKey(documentID, version)
	raw, err := s.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var out []Comment
		if err := json.Unmarshal(raw, &out); err == nil {
			s.metrics.CacheLookup(true)
			return out, nil
		}
		s.log.Warn("comments cache: corrupt entry", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		s.log.Warn("comments cache: get failed", zap.String("key", key), zap.Error(err))
	}
	s.metrics.CacheLookup(false)

	out, err := s.next.QueryDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(out); err == nil {
		if err := s.client.Set(ctx, key, b, s.ttl).Err(); err != nil {
			s.log.Warn("comments cache: set failed", zap.String("key", key), zap.Error(err))
		}
	}
	return out, nil
}

func (s *CachedCommentStore) Insert(ctx context.Context, in NewComment) (Comment, error) {
	c, err := s.next.Insert(ctx, in)
	if err != nil {
		return c, err
	}
	s.evict(ctx, c.DocumentID)
	return c, nil
}

func (s *CachedCommentStore) Update(ctx context.Context, id string, p CommentPatch) (Comment, error) {
	c, err := s.next.Update(ctx, id, p)
	if err != nil {
		return c, err
	}
	s.evict(ctx, c.DocumentID)
	return c, nil
}

func (s *CachedCommentStore) SoftDelete(ctx context.Context, id string) (Comment, bool, error) {
	c, stamped, err := s.next.SoftDelete(ctx, id)
	if err != nil || !stamped {
		return c, stamped, err
	}
	s.evict(ctx, c.DocumentID)
	return c, true, nil
}

func (s *CachedCommentStore) Ping(ctx context.Context) error {
	return s.next.Ping(ctx)
}

// evict moves the document to a new version and drops the entry of the
// previous one.
func (s *CachedCommentStore) evict(ctx context.Context, documentID string) {
	version, err := s.client.Incr(ctx, versionKey(documentID)).Result()
	if err != nil {
		s.log.Warn("comments cache: evict failed", zap.String("document_id", documentID), zap.Error(err))
		return
	}
	if err := s.client.Del(ctx, documentKey(documentID, version-1)).Err(); err != nil {
		s.log.Debug("comments cache: stale entry not removed", zap.String("document_id", documentID), zap.Error(err))
	}
}
