// Command hrctl runs maintenance jobs against the hr database.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/bitfantasy/nimo-hr/internal/config"
	"github.com/bitfantasy/nimo-hr/internal/database"
	"github.com/bitfantasy/nimo-hr/internal/hr/repository"
	"github.com/bitfantasy/nimo-hr/internal/hr/service"
	"github.com/bitfantasy/nimo-hr/internal/logger"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const dateLayout = "2006-01-02"

var rootCmd = &cobra.Command{
	Use:           "hrctl",
	Short:         "Maintenance commands for nimo-hr",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer env.close()
		if err := database.Migrate(env.db); err != nil {
			return err
		}
		env.logger.Info("schema migrated", zap.String("driver", env.cfg.Database.Driver))
		return nil
	},
}

var rebuildWorkloadCmd = &cobra.Command{
	Use:   "rebuild-workload",
	Short: "Recompute the workload rows of every active employee for one week",
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, _ := cmd.Flags().GetString("week")
		env, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer env.close()

		week := env.services.Workload.CurrentWeek()
		if raw != "" {
			if week, err = time.Parse(dateLayout, raw); err != nil {
				return fmt.Errorf("--week must be YYYY-MM-DD: %w", err)
			}
		}
		n, err := env.services.Workload.Rebuild(cmd.Context(), week)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "recomputed %d employees for week %s\n", n, week.Format(dateLayout))
		return nil
	},
}

var rebuildAnalyticsCmd = &cobra.Command{
	Use:   "rebuild-analytics",
	Short: "Recompute the daily productivity rows of one employee",
	RunE: func(cmd *cobra.Command, args []string) error {
		employeeID, _ := cmd.Flags().GetString("employee")
		rawFrom, _ := cmd.Flags().GetString("from")
		rawTo, _ := cmd.Flags().GetString("to")
		from, err := time.Parse(dateLayout, rawFrom)
		if err != nil {
			return fmt.Errorf("--from must be YYYY-MM-DD: %w", err)
		}
		env, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer env.close()

		to := env.services.Analytics.Today()
		if rawTo != "" {
			if to, err = time.Parse(dateLayout, rawTo); err != nil {
				return fmt.Errorf("--to must be YYYY-MM-DD: %w", err)
			}
		}
		n, err := env.services.Analytics.RecomputeRange(cmd.Context(), employeeID, from, to)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "recomputed %d days for %s\n", n, employeeID)
		return nil
	},
}

type environment struct {
	cfg      *config.Config
	logger   *zap.Logger
	db       *gorm.DB
	rdb      *redis.Client
	services *service.Services
}

func (e *environment) close() {
	if e.rdb != nil {
		e.rdb.Close()
	}
	e.logger.Sync()
}

func bootstrap(ctx context.Context) (*environment, error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	zapLogger, err := logger.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, err
	}
	// recomputed rows drop the cached team views they feed
	rdb := database.ConnectRedis(ctx, cfg.Redis, zapLogger)
	services := service.NewServices(repository.NewRepositories(db), cfg, service.Options{Logger: zapLogger, Redis: rdb})
	return &environment{cfg: cfg, logger: zapLogger, db: db, rdb: rdb, services: services}, nil
}

func init() {
	rebuildWorkloadCmd.Flags().String("week", "", "any day of the week, YYYY-MM-DD (default current week)")

	rebuildAnalyticsCmd.Flags().String("employee", "", "employee id")
	rebuildAnalyticsCmd.Flags().String("from", "", "first day, YYYY-MM-DD")
	rebuildAnalyticsCmd.Flags().String("to", "", "last day, YYYY-MM-DD (default today)")
	_ = rebuildAnalyticsCmd.MarkFlagRequired("employee")
	_ = rebuildAnalyticsCmd.MarkFlagRequired("from")

	rootCmd.AddCommand(migrateCmd, rebuildWorkloadCmd, rebuildAnalyticsCmd)
}

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
	err := rootCmd.ExecuteContext(ctx)
	cancel()
	if err != nil {
		log.Printf("hrctl: %v", err)
		os.Exit(1)
	}
}
