package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-billing/config"
)

var (
	expireWorker        bool
	notificationsWorker bool
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Run housekeeping jobs",
}

var expireCmd = &cobra.Command{
	Use:   "expire",
	Short: "Mark lapsed active subscriptions as expired",
	Run: func(_ *cobra.Command, _ []string) {
		runCommand(
			"expire_subscriptions",
			expireWorker,
			func(cfg *config.Config) time.Duration { return cfg.Jobs.ExpirationCheckInterval },
			func(app *application, ctx context.Context) (int, error) {
				return app.subscriptions.RunExpirationBatch(ctx)
			},
		)
	},
}

var notificationsCmd = &cobra.Command{
	Use:   "notifications",
	Short: "Retry notifications that failed to dispatch",
	Run: func(_ *cobra.Command, _ []string) {
		runCommand(
			"retry_notifications",
			notificationsWorker,
			func(cfg *config.Config) time.Duration { return cfg.Jobs.NotificationRetryEvery },
			func(app *application, ctx context.Context) (int, error) {
				return app.notifications.RunRetryBatch(ctx)
			},
		)
	},
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(expireCmd)
	jobsCmd.AddCommand(notificationsCmd)

	expireCmd.Flags().BoolVar(&expireWorker, "worker", false, "Run continuously using configured interval")
	notificationsCmd.Flags().BoolVar(&notificationsWorker, "worker", false, "Run continuously using configured interval")
}

type jobFunc func(app *application, ctx context.Context) (int, error)

func runCommand(
	name string,
	worker bool,
	intervalResolver func(cfg *config.Config) time.Duration,
	fn jobFunc,
) {
	cfg := mustLoadConfig()
	app := mustBuildApplication(cfg)
	defer app.Close()

	if worker {
		runWorker(name, intervalResolver(cfg), app, fn)
		return
	}

	ctx := context.Background()
	runJob(name, func() (int, error) { return fn(app, ctx) })
}

func runWorker(name string, interval time.Duration, app *application, fn jobFunc) {
	if interval <= 0 {
		logrus.WithField("job", name).Fatal("invalid worker interval")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runJob(name, func() (int, error) { return fn(app, ctx) })

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	for {
		select {
		case <-quit:
			logrus.WithField("job", name).Info("Worker shutdown requested")
			return
		case <-ticker.C:
			runJob(name, func() (int, error) { return fn(app, ctx) })
		}
	}
}

func runJob(name string, fn func() (int, error)) {
	start := time.Now()
	processed, err := fn()
	entry := logrus.WithFields(logrus.Fields{
		"job":       name,
		"processed": processed,
		"latency":   time.Since(start).String(),
	})
	if err != nil {
		entry.WithError(err).Error("job_failed")
		return
	}
	entry.Info("job_completed")
}
