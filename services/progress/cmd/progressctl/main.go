package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/questor/internal/platform/db"
	"github.com/example/questor/internal/platform/natsconn"
	"github.com/example/questor/services/progress/internal/certify"
	"github.com/example/questor/services/progress/internal/course"
	"github.com/example/questor/services/progress/internal/progress"
	"github.com/example/questor/services/progress/internal/store"
)

func main() {
	_ = godotenv.Load()
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var dsn string

	root := &cobra.Command{
		Use:           "progressctl",
		Short:         "Operate the progress store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&dsn, "database-url", os.Getenv("DATABASE_URL"), "postgres DSN")

	root.AddCommand(newMigrateCmd(&dsn))
	root.AddCommand(newSeedCoursesCmd(&dsn))
	root.AddCommand(newSummaryCmd(&dsn))
	root.AddCommand(newCertifyCmd(&dsn))
	root.AddCommand(newReindexCmd(&dsn))
	return root
}

func openPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("--database-url or DATABASE_URL is required")
	}
	return db.Open(ctx, dsn)
}

func newMigrateCmd(dsn *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			pool, err := openPool(ctx, *dsn)
			if err != nil {
				return err
			}
			defer pool.Close()
			if err := db.Migrate(ctx, pool); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}

func newSeedCoursesCmd(dsn *string) *cobra.Command {
	var natsURL string
	seed := &cobra.Command{
		Use:   "seed-courses <file.yaml>",
		Short: "Upsert courses from a catalog file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			courses, err := course.LoadFile(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			pool, err := openPool(ctx, *dsn)
			if err != nil {
				return err
			}
			defer pool.Close()

			var nc *nats.Conn
			if natsURL != "" {
				nc, err = natsconn.Connect(natsconn.Options{URL: natsURL, Name: "progressctl"})
				if err != nil {
					return err
				}
				defer nc.Close()
			}

			cs := store.NewPostgresCourseStore(pool)
			for _, c := range courses {
				if err := cs.PutCourse(ctx, c); err != nil {
					return fmt.Errorf("course %s: %w", c.ID, err)
				}
				if nc != nil {
					if err := nc.Publish(store.SubjectCourseUpdated, []byte(c.ID)); err != nil {
						return fmt.Errorf("invalidate %s: %w", c.ID, err)
					}
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d lessons\n", c.ID, c.Title, c.TotalLessons())
			}
			if nc != nil {
				return nc.Flush()
			}
			return nil
		},
	}
	seed.Flags().StringVar(&natsURL, "nats-url", os.Getenv("NATS_URL"), "publish cache invalidations here when set")
	return seed
}

func newSummaryCmd(dsn *string) *cobra.Command {
	var userID, courseID string
	summary := &cobra.Command{
		Use:   "summary --user <id> --course <id>",
		Short: "Print a learner's course summary",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(userID) == "" || strings.TrimSpace(courseID) == "" {
				return fmt.Errorf("--user and --course are required")
			}
			ctx := cmd.Context()
			pool, err := openPool(ctx, *dsn)
			if err != nil {
				return err
			}
			defer pool.Close()

			c, err := store.NewPostgresCourseStore(pool).GetCourse(ctx, courseID)
			if err != nil {
				return err
			}
			m, err := store.NewPostgresProgressStore(pool).GetCourseProgress(ctx, userID, courseID)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(progress.Aggregate(c, m))
		},
	}
	summary.Flags().StringVar(&userID, "user", "", "user id")
	summary.Flags().StringVar(&courseID, "course", "", "course id")
	return summary
}

func newCertifyCmd(dsn *string) *cobra.Command {
	var userID, courseID, name, scheme string
	certifyCmd := &cobra.Command{
		Use:   "certify --user <id> --course <id>",
		Short: "Run completion detection for one learner and course",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(userID) == "" || strings.TrimSpace(courseID) == "" {
				return fmt.Errorf("--user and --course are required")
			}
			newID, err := certify.IDScheme(scheme)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			pool, err := openPool(ctx, *dsn)
			if err != nil {
				return err
			}
			defer pool.Close()

			courses := store.NewPostgresCourseStore(pool)
			issuer := certify.NewIssuer(courses, store.NewPostgresProgressStore(pool), store.NewPostgresCertificateStore(pool), courses, zap.NewNop(), certify.WithIDFunc(newID))
			res, err := issuer.Evaluate(ctx, certify.Learner{UserID: userID, Name: name}, courseID)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "state: %s\n", res.State)
			if res.Certificate != nil {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "certificate: %s issued=%t\n", res.Certificate.CertificateID, res.Issued)
			}
			return nil
		},
	}
	certifyCmd.Flags().StringVar(&userID, "user", "", "user id")
	certifyCmd.Flags().StringVar(&courseID, "course", "", "course id")
	certifyCmd.Flags().StringVar(&name, "name", "", "learner display name printed on the certificate")
	certifyCmd.Flags().StringVar(&scheme, "id-scheme", "deterministic", "certificate id scheme: deterministic|legacy")
	return certifyCmd
}

func newReindexCmd(dsn *string) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the public certificate index from learner ledgers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			pool, err := openPool(ctx, *dsn)
			if err != nil {
				return err
			}
			defer pool.Close()

			cs := store.NewPostgresCertificateStore(pool)
			certs, err := cs.ListAllCertificates(ctx)
			if err != nil {
				return err
			}
			for _, c := range certs {
				if err := cs.IndexCertificate(ctx, c); err != nil {
					return fmt.Errorf("index %s: %w", c.CertificateID, err)
				}
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "indexed %d certificates\n", len(certs))
			return nil
		},
	}
}
