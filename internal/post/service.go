package post

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"microblog/internal/common"
	"microblog/internal/images"
	"microblog/internal/observability"
	"microblog/internal/queue"

	"github.com/sirupsen/logrus"
)

const feedKeyType = "feed"

// FeedCache caches the serialized feed. Fill only writes while the
// generation still matches, and Invalidate advances it. *cache.FeedCache
// implements it.
type FeedCache interface {
	Get(ctx context.Context) ([]byte, error)
	Generation(ctx context.Context) (int64, error)
	Fill(ctx context.Context, gen int64, data interface{}) (bool, error)
	Invalidate(ctx context.Context) error
}

// EventPublisher announces accepted posts. *queue.Publisher implements it.
type EventPublisher interface {
	PublishPostCreated(ctx context.Context, evt queue.PostEvent) error
}

type PostServiceInterface interface {
	CreatePost(ctx context.Context, author, rawContent string, image *images.Upload) (*Post, error)
	ListPosts(ctx context.Context) ([]*Post, error)
	RebuildFeed(ctx context.Context) error
}

// Deps holds the optional collaborators of PostService. Nil fields disable
// the matching feature.
type Deps struct {
	Images  images.Store
	Cache   FeedCache
	Events  EventPublisher
	Metrics *observability.Metrics
}

type PostService struct {
	repo    PostRepositoryInterface
	policy  *Policy
	images  images.Store
	cache   FeedCache
	events  EventPublisher
	metrics *observability.Metrics
	now     func() time.Time
}

func NewPostService(repo PostRepositoryInterface, policy *Policy, deps Deps) *PostService {
	return &PostService{
		repo:    repo,
		policy:  policy,
		images:  deps.Images,
		cache:   deps.Cache,
		events:  deps.Events,
		metrics: deps.Metrics,
		now:     time.Now,
	}
}

// CreatePost admits a post by author at the current time. The cooldown check
// and the insert run atomically in the store.
func (s *PostService) CreatePost(ctx context.Context, author, rawContent string, image *images.Upload) (*Post, error) {
	now := s.now().UTC().Truncate(time.Microsecond)

	if author == "" {
		s.metrics.PostRejected("unauthenticated")
		return nil, common.ErrUnauthenticated
	}

	content, err := s.policy.NormalizeContent(rawContent)
	if err != nil {
		if errors.Is(err, common.ErrContentTooLong) {
			s.metrics.PostRejected("too_long")
		} else {
			s.metrics.PostRejected("empty")
		}
		return nil, err
	}

	post := &Post{
		Author:    author,
		Content:   content,
		Timestamp: now,
	}

	var imageKey string
	if image != nil {
		if imageKey, err = s.saveImage(ctx, post, image, now); err != nil {
			return nil, err
		}
	}

	stored, err := s.repo.AppendIfAllowed(ctx, post, func(last *time.Time) error {
		return s.policy.CheckCooldown(author, last, now)
	})
	if err != nil {
		if imageKey != "" {
			s.discardImage(imageKey)
		}
		switch {
		case errors.Is(err, common.ErrRateLimited):
			s.metrics.PostRejected("cooldown")
			return nil, err
		case errors.Is(err, common.ErrUnauthenticated):
			s.metrics.PostRejected("unauthenticated")
			return nil, err
		default:
			return nil, s.storeError("append_post", err)
		}
	}

	s.metrics.PostAdmitted()
	s.announce(ctx, stored)
	return stored, nil
}

// saveImage uploads image once the author is known to be outside the
// cooldown, so throttled requests don't leave objects behind.
func (s *PostService) saveImage(ctx context.Context, post *Post, image *images.Upload, now time.Time) (string, error) {
	if s.images == nil {
		s.metrics.PostRejected("invalid_image")
		return "", fmt.Errorf("%w: uploads disabled", common.ErrInvalidImage)
	}

	if !s.policy.IsExempt(post.Author) {
		last, err := s.repo.LastPostTime(ctx, post.Author)
		if err != nil {
			return "", s.storeError("last_post_time", err)
		}
		if err := s.policy.CheckCooldown(post.Author, last, now); err != nil {
			s.metrics.PostRejected("cooldown")
			return "", err
		}
	}

	key := images.NewKey(now, image.Ext)
	ref, err := s.images.Save(ctx, key, image.ContentType, image.Data)
	if err != nil {
		return "", s.storeError("save_image", err)
	}
	post.Image = &ref
	return key, nil
}

func (s *PostService) discardImage(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.images.Delete(ctx, key); err != nil {
		logrus.WithError(err).WithField("key", key).Warn("Failed to delete image of rejected post")
	}
}

// announce drops the cached feed and publishes the post event. Both are best
// effort; the post is already stored.
func (s *PostService) announce(ctx context.Context, p *Post) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			logrus.WithError(err).Warn("Failed to invalidate feed cache")
		}
	}

	if s.events != nil {
		evt := queue.PostEvent{ID: p.ID, Author: p.Author, Timestamp: p.Timestamp}
		if err := s.events.PublishPostCreated(ctx, evt); err != nil {
			logrus.WithError(err).WithField("post_id", p.ID).Warn("Failed to publish post event")
		}
	}
}

// ListPosts returns every post newest first, from the cache when possible.
func (s *PostService) ListPosts(ctx context.Context) ([]*Post, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx)
		if err != nil {
			logrus.WithError(err).Warn("Failed to read feed cache")
		} else if cached != nil {
			var posts []*Post
			if json.Unmarshal(cached, &posts) == nil {
				s.metrics.CacheHit(feedKeyType)
				return posts, nil
			}
		}
		s.metrics.CacheMiss(feedKeyType)
	}

	return s.loadFeed(ctx)
}

// RebuildFeed reloads the feed from the store into the cache. Cache
// failures are returned so the caller can retry.
func (s *PostService) RebuildFeed(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}

	gen, err := s.cache.Generation(ctx)
	if err != nil {
		return fmt.Errorf("failed to read feed generation: %w", err)
	}

	posts, err := s.repo.ListNewestFirst(ctx)
	if err != nil {
		return s.storeError("list_posts", err)
	}

	filled, err := s.cache.Fill(ctx, gen, posts)
	if err != nil {
		return fmt.Errorf("failed to set feed cache: %w", err)
	}

	// A newer post's event rebuilds again when the fill is skipped.
	logrus.WithFields(logrus.Fields{"posts": len(posts), "filled": filled}).Debug("Feed cache rebuilt")
	return nil
}

// loadFeed reads the store and fills the cache with the result. The
// generation is taken before the read so a post accepted in between keeps
// the stale snapshot out of the cache.
func (s *PostService) loadFeed(ctx context.Context) ([]*Post, error) {
	useCache := s.cache != nil
	var gen int64
	if useCache {
		var err error
		if gen, err = s.cache.Generation(ctx); err != nil {
			logrus.WithError(err).Warn("Failed to read feed generation")
			useCache = false
		}
	}

	posts, err := s.repo.ListNewestFirst(ctx)
	if err != nil {
		return nil, s.storeError("list_posts", err)
	}

	if useCache {
		filled, err := s.cache.Fill(ctx, gen, posts)
		switch {
		case err != nil:
			logrus.WithError(err).Warn("Failed to set feed cache")
		case !filled:
			logrus.WithField("generation", gen).Debug("Feed changed during read, cache not filled")
		}
	}

	return posts, nil
}

func (s *PostService) storeError(operation string, err error) error {
	s.metrics.StoreError(operation)
	logrus.WithError(err).WithField("operation", operation).Error("Post store failure")
	return fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
}
