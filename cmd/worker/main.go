package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"github.com/fuzoj/jobrunner/internal/broker"
	"github.com/fuzoj/jobrunner/internal/config"
	"github.com/fuzoj/jobrunner/internal/filemanager"
	"github.com/fuzoj/jobrunner/internal/jobrun"
	"github.com/fuzoj/jobrunner/internal/jobspec"
	"github.com/fuzoj/jobrunner/internal/results"
	"github.com/fuzoj/jobrunner/internal/tasks"
	"github.com/fuzoj/jobrunner/internal/vars"
	"github.com/fuzoj/jobrunner/pkg/logger"
)

const defaultConfigPath = "configs/worker.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	workDir := flag.String("work-dir", "work", "Root directory for per-job scratch space")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load worker config failed: %v\n", err)
		return
	}

	if err := logger.Init(cfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, err := broker.Dial(ctx, cfg.Broker.URL)
	if err != nil {
		logger.Error(ctx, "broker dial failed", zap.Error(err))
		return
	}
	defer conn.Close()

	fm := filemanager.NewLocal(cfg.Files.CacheDir)

	log := logger.GetLogger()
	var zl *zap.Logger
	if log != nil {
		zl = log.WithContext(ctx)
	}

	logger.Info(ctx, "worker started", zap.String("worker_id", cfg.WorkerID), zap.String("hwgroup", cfg.Hwgroup))

	for {
		payload, err := conn.Receive()
		if err != nil {
			logger.Error(ctx, "broker receive failed", zap.Error(err))
			return
		}

		select {
		case <-ctx.Done():
			logger.Info(ctx, "shutdown signal received")
			return
		default:
		}

		result, err := runJob(ctx, payload, cfg, fm, *workDir, zl)
		if err != nil {
			logger.Error(ctx, "job run failed", zap.Error(err))
			continue
		}
		if err := conn.Send(result); err != nil {
			logger.Error(ctx, "broker send failed", zap.Error(err))
			return
		}
	}
}

// runJob parses one job descriptor, runs it to completion, and
// returns a short status summary to report back to the broker. The
// wire format for job descriptors in and results out is intentionally
// minimal — the broker protocol itself is out of scope here.
func runJob(ctx context.Context, descriptor []byte, cfg *config.WorkerConfig, fm filemanager.FileManager, workRoot string, log *zap.Logger) ([]byte, error) {
	job, err := jobspec.Parse(descriptor)
	if err != nil {
		return nil, err
	}

	jobDir := filepath.Join(workRoot, job.JobID)
	dirs := []string{
		filepath.Join(jobDir, "source"),
		filepath.Join(jobDir, "working"),
		filepath.Join(jobDir, "temp"),
		filepath.Join(jobDir, "result"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, err
		}
	}

	rc := &tasks.RunContext{
		WorkerID:            cfg.WorkerID,
		JobID:               job.JobID,
		SourceDir:           dirs[0],
		WorkingDir:          dirs[1],
		TempDir:             dirs[2],
		ResultDir:           dirs[3],
		EvaluationDir:       dirs[1],
		JudgesDir:           cfg.Files.JudgesDir,
		MaxOutputLength:     cfg.MaxOutputLength,
		MaxCarboncopyLength: cfg.MaxCarboncopyLength,
		FileManager:         fm,
		SandboxFactory:      nil,
		Log:                 log,
	}

	values := vars.Values{
		WorkerID:  cfg.WorkerID,
		JobID:     job.JobID,
		SourceDir: rc.SourceDir,
		EvalDir:   rc.EvaluationDir,
		ResultDir: rc.ResultDir,
		TempDir:   rc.TempDir,
		JudgesDir: rc.JudgesDir,
	}

	// rc.SandboxFactory is left nil: the external task picks the isolate
	// driver per-task from meta.Sandbox.Name via sandbox.NewFactory.
	driver := jobrun.NewDriver(rc, cfg.Defaults(), cfg.Maxima(), cfg.Hwgroup, values, jobrun.NoopCallback{})
	agg, err := driver.Run(ctx, job)
	if err != nil {
		return nil, err
	}

	return summarize(job.JobID, agg), nil
}

func summarize(jobID string, agg *results.Aggregator) []byte {
	verdict := "OK"
	if !agg.OverallOK() {
		verdict = "FAILED"
	}
	return []byte(fmt.Sprintf("job_id: %s\nverdict: %s\n", jobID, verdict))
}
