package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/example/questor/services/progress/internal/course"
)

// SubjectCourseUpdated is published after catalog writes so every instance
// drops its cached copy.
const SubjectCourseUpdated = "progress.course.updated"

type redisKV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// CachedCourseStore is a read-through Redis cache in front of another
// CourseStore. Cache errors fall through to the backing store.
type CachedCourseStore struct {
	CourseStore
	rdb redisKV
	ttl time.Duration
	log *zap.Logger
}

func NewCachedCourseStore(next CourseStore, rdb *redis.Client, ttl time.Duration, log *zap.Logger) *CachedCourseStore {
	return newCachedCourseStore(next, rdb, ttl, log)
}

func newCachedCourseStore(next CourseStore, rdb redisKV, ttl time.Duration, log *zap.Logger) *CachedCourseStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CachedCourseStore{CourseStore: next, rdb: rdb, ttl: ttl, log: log}
}

func courseCacheKey(courseID string) string { return "progress:course:" + courseID }

func (s *CachedCourseStore) GetCourse(ctx context.Context, courseID string) (course.Course, error) {
	key := courseCacheKey(courseID)
	raw, err := s.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var c course.Course
		if jerr := json.Unmarshal(raw, &c); jerr == nil {
			return c, nil
		}
		s.log.Warn("course cache entry corrupt", zap.String("course_id", courseID))
	case !errors.Is(err, redis.Nil):
		s.log.Warn("course cache read failed", zap.String("course_id", courseID), zap.Error(err))
	}

	c, err := s.CourseStore.GetCourse(ctx, courseID)
	if err != nil {
		return course.Course{}, err
	}
	if data, jerr := json.Marshal(c); jerr == nil {
		if werr := s.rdb.Set(ctx, key, data, s.ttl).Err(); werr != nil {
			s.log.Warn("course cache write failed", zap.String("course_id", courseID), zap.Error(werr))
		}
	}
	return c, nil
}

func (s *CachedCourseStore) PutCourse(ctx context.Context, c course.Course) error {
	if err := s.CourseStore.PutCourse(ctx, c); err != nil {
		return err
	}
	return s.Invalidate(ctx, c.ID)
}

// Invalidate drops the cached copy of a course.
func (s *CachedCourseStore) Invalidate(ctx context.Context, courseID string) error {
	return s.rdb.Del(ctx, courseCacheKey(courseID)).Err()
}
