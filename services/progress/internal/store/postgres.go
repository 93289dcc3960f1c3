package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/questor/services/progress/internal/certify"
	"github.com/example/questor/services/progress/internal/course"
	"github.com/example/questor/services/progress/internal/progress"
)

// PostgresProgressStore persists lesson progress in Postgres.
type PostgresProgressStore struct {
	pool *pgxpool.Pool
}

func NewPostgresProgressStore(pool *pgxpool.Pool) *PostgresProgressStore {
	return &PostgresProgressStore{pool: pool}
}

func (s *PostgresProgressStore) GetCourseProgress(ctx context.Context, userID, courseID string) (progress.Map, error) {
	const q = `SELECT lesson_key, completed, percent, current_time_seconds, last_watched_at, last_updated_at
	           FROM lesson_progress
	           WHERE user_id = $1 AND course_id = $2`
	rows, err := s.pool.Query(ctx, q, userID, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	m := make(progress.Map)
	for rows.Next() {
		var (
			key     string
			lp      progress.LessonProgress
			watched *time.Time
			updated *time.Time
		)
		if err := rows.Scan(&key, &lp.Completed, &lp.Percent, &lp.CurrentTimeSeconds, &watched, &updated); err != nil {
			return nil, err
		}
		if watched != nil {
			lp.LastWatchedAt = watched.UTC()
		}
		if updated != nil {
			lp.LastUpdatedAt = updated.UTC()
		}
		m[key] = lp
	}
	return m, rows.Err()
}

// MergeLessonProgress upserts a single row. GREATEST ignores NULL, so absent
// timestamps keep the stored value. The prev CTE locks the existing row so
// the completed flag it reports is the one this upsert replaced.
func (s *PostgresProgressStore) MergeLessonProgress(ctx context.Context, userID, courseID, lessonKey string, patch progress.Patch) (progress.Merged, error) {
	const q = `
WITH prev AS (
	SELECT completed FROM lesson_progress
	WHERE user_id = $1 AND course_id = $2 AND lesson_key = $3
	FOR UPDATE
), merged AS (
	INSERT INTO lesson_progress AS lp (user_id, course_id, lesson_key, completed, percent, current_time_seconds, last_watched_at, last_updated_at)
	VALUES ($1, $2, $3, COALESCE($4::boolean, false), LEAST(GREATEST(COALESCE($5::integer, 0), 0), 100), COALESCE($6::double precision, 0), $7::timestamptz, $8::timestamptz)
	ON CONFLICT (user_id, course_id, lesson_key) DO UPDATE SET
		completed            = lp.completed OR COALESCE($4::boolean, false),
		percent              = GREATEST(lp.percent, LEAST(GREATEST(COALESCE($5::integer, 0), 0), 100)),
		current_time_seconds = COALESCE($6::double precision, lp.current_time_seconds),
		last_watched_at      = GREATEST(lp.last_watched_at, $7::timestamptz),
		last_updated_at      = GREATEST(lp.last_updated_at, $8::timestamptz)
	RETURNING completed, percent, current_time_seconds, last_watched_at, last_updated_at
)
SELECT m.completed, m.percent, m.current_time_seconds, m.last_watched_at, m.last_updated_at,
       COALESCE((SELECT completed FROM prev), false)
FROM merged m`

	var (
		out     progress.Merged
		was     bool
		watched *time.Time
		updated *time.Time
	)
	err := s.pool.QueryRow(ctx, q, userID, courseID, lessonKey,
		patch.Completed, patch.Percent, patch.CurrentTimeSeconds, patch.LastWatchedAt, patch.LastUpdatedAt,
	).Scan(&out.Completed, &out.Percent, &out.CurrentTimeSeconds, &watched, &updated, &was)
	if err != nil {
		return progress.Merged{}, fmt.Errorf("merge lesson progress: %w", err)
	}
	if watched != nil {
		out.LastWatchedAt = watched.UTC()
	}
	if updated != nil {
		out.LastUpdatedAt = updated.UTC()
	}
	out.NewlyCompleted = out.Completed && !was
	return out, nil
}

func (s *PostgresProgressStore) ListCourseIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT course_id FROM lesson_progress WHERE user_id = $1 ORDER BY course_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// PostgresCertificateStore keeps user certificate lists in user_certificates
// and the global index in certificates.
type PostgresCertificateStore struct {
	pool *pgxpool.Pool
}

func NewPostgresCertificateStore(pool *pgxpool.Pool) *PostgresCertificateStore {
	return &PostgresCertificateStore{pool: pool}
}

const certColumns = `certificate_id, course_id, course_name, user_id, user_name, issue_date`

func scanCertificates(rows pgx.Rows) ([]certify.Certificate, error) {
	defer rows.Close()
	var out []certify.Certificate
	for rows.Next() {
		var c certify.Certificate
		if err := rows.Scan(&c.CertificateID, &c.CourseID, &c.CourseName, &c.UserID, &c.UserName, &c.IssueDate); err != nil {
			return nil, err
		}
		c.IssueDate = c.IssueDate.UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresCertificateStore) ListCertificates(ctx context.Context, userID string) ([]certify.Certificate, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+certColumns+` FROM user_certificates WHERE user_id = $1 ORDER BY issue_date DESC`, userID)
	if err != nil {
		return nil, err
	}
	return scanCertificates(rows)
}

// AppendCertificate relies on the primary key and the (user_id, course_id)
// unique index; a conflict on either reports false.
func (s *PostgresCertificateStore) AppendCertificate(ctx context.Context, userID string, c certify.Certificate) (bool, error) {
	const q = `INSERT INTO user_certificates (` + certColumns + `)
	           VALUES ($1, $2, $3, $4, $5, $6)
	           ON CONFLICT DO NOTHING`
	tag, err := s.pool.Exec(ctx, q, c.CertificateID, c.CourseID, c.CourseName, userID, c.UserName, c.IssueDate)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresCertificateStore) IndexCertificate(ctx context.Context, c certify.Certificate) error {
	const q = `INSERT INTO certificates (` + certColumns + `)
	           VALUES ($1, $2, $3, $4, $5, $6)
	           ON CONFLICT (certificate_id) DO NOTHING`
	_, err := s.pool.Exec(ctx, q, c.CertificateID, c.CourseID, c.CourseName, c.UserID, c.UserName, c.IssueDate)
	return err
}

func (s *PostgresCertificateStore) GetCertificate(ctx context.Context, certificateID string) (certify.Certificate, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+certColumns+` FROM certificates WHERE certificate_id = $1`, certificateID)
	if err != nil {
		return certify.Certificate{}, err
	}
	certs, err := scanCertificates(rows)
	if err != nil {
		return certify.Certificate{}, err
	}
	if len(certs) == 0 {
		return certify.Certificate{}, ErrCertificateNotFound
	}
	return certs[0], nil
}

func (s *PostgresCertificateStore) ListAllCertificates(ctx context.Context) ([]certify.Certificate, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+certColumns+` FROM user_certificates ORDER BY certificate_id`)
	if err != nil {
		return nil, err
	}
	return scanCertificates(rows)
}

// PostgresCourseStore reads courses with their sections stored as jsonb.
type PostgresCourseStore struct {
	pool *pgxpool.Pool
}

func NewPostgresCourseStore(pool *pgxpool.Pool) *PostgresCourseStore {
	return &PostgresCourseStore{pool: pool}
}

func (s *PostgresCourseStore) GetCourse(ctx context.Context, courseID string) (course.Course, error) {
	var (
		c   course.Course
		raw []byte
	)
	err := s.pool.QueryRow(ctx, `SELECT id, title, sections FROM courses WHERE id = $1`, courseID).Scan(&c.ID, &c.Title, &raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return course.Course{}, ErrCourseNotFound
	}
	if err != nil {
		return course.Course{}, err
	}
	if err := json.Unmarshal(raw, &c.Sections); err != nil {
		return course.Course{}, fmt.Errorf("decode sections of %s: %w", courseID, err)
	}
	return c, nil
}

func (s *PostgresCourseStore) ListCourses(ctx context.Context) ([]course.Course, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, title, sections FROM courses ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []course.Course
	for rows.Next() {
		var (
			c   course.Course
			raw []byte
		)
		if err := rows.Scan(&c.ID, &c.Title, &raw); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &c.Sections); err != nil {
			return nil, fmt.Errorf("decode sections of %s: %w", c.ID, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresCourseStore) PutCourse(ctx context.Context, c course.Course) error {
	sections, err := json.Marshal(c.Sections)
	if err != nil {
		return err
	}
	const q = `INSERT INTO courses (id, title, sections, updated_at)
	           VALUES ($1, $2, $3, now())
	           ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, sections = EXCLUDED.sections, updated_at = now()`
	_, err = s.pool.Exec(ctx, q, c.ID, c.Title, sections)
	return err
}

func (s *PostgresCourseStore) IncrementCompletions(ctx context.Context, courseID string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE courses SET completions_count = completions_count + 1 WHERE id = $1`, courseID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCourseNotFound
	}
	return nil
}

func (s *PostgresCourseStore) CompletionsCount(ctx context.Context, courseID string) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT completions_count FROM courses WHERE id = $1`, courseID).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrCourseNotFound
	}
	return n, err
}
