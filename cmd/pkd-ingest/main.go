// Command pkd-ingest runs the durable upload queue worker pool,
// parsing and deduplicating accepted LDIF/CMS uploads against the
// trust store (spec §4.1, §5). Grounded on the teacher's per-service
// cmd/boulder-sa-style entrypoint shape (flag-based config path,
// DebugServer exposing /metrics, signal-driven shutdown) from
// cmd/shell.go, generalized away from the teacher's AppShell/AMQP
// bootstrapping since the PKD has no RPC mesh to join.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"
	"github.com/letsencrypt/borp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jmhodges/clock"

	"github.com/iland112/local-pkd-sub001/config"
	"github.com/iland112/local-pkd-sub001/core"
	"github.com/iland112/local-pkd-sub001/directory"
	"github.com/iland112/local-pkd-sub001/metrics"
	"github.com/iland112/local-pkd-sub001/parser"
	"github.com/iland112/local-pkd-sub001/pkdlog"
	"github.com/iland112/local-pkd-sub001/queue"
	"github.com/iland112/local-pkd-sub001/trust"
	"github.com/iland112/local-pkd-sub001/validator"
)

func main() {
	configPath := flag.String("config", "", "path to the PKD configuration YAML file")
	debugAddr := flag.String("debugAddr", ":8001", "address to serve /metrics on")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("pkd-ingest: loading config: %v", err)
	}

	rawDB, err := sql.Open("mysql", string(cfg.Database.DBConnect))
	if err != nil {
		log.Fatalf("pkd-ingest: opening database: %v", err)
	}
	rawDB.SetMaxOpenConns(cfg.Database.MaxOpenConn)
	rawDB.SetMaxIdleConns(cfg.Database.MaxIdleConn)
	dbMap := &borp.DbMap{Db: rawDB, Dialect: borp.MySQLDialect{Engine: "InnoDB", Encoding: "UTF8"}}

	store := trust.NewSQLStore(dbMap)
	dirClient := directory.NewSQLClient(dbMap)
	log_ := pkdlog.New("pkd-ingest")

	q, err := queue.Open(cfg.Ingest.QueueDir)
	if err != nil {
		log.Fatalf("pkd-ingest: opening queue: %v", err)
	}
	defer q.Close()

	reg := prometheus.NewRegistry()
	pkdMetrics := metrics.NewPKDMetrics(reg)
	go serveDebug(*debugAddr, reg)

	ctx, cancel := context.WithCancel(context.Background())
	go awaitShutdown(cancel)

	valCfg := validator.DefaultConfig()
	valCfg.StrictCRLMode = cfg.Validator.StrictCRLMode
	valCfg.CSCACacheMaxBytes = cfg.Validator.CSCACacheMaxBytes
	valCfg.ClockSkewTolerance = cfg.Validator.ClockSkewTolerance.Duration
	v := validator.New(store, core.NoopProgressSink{}, clock.New(), valCfg)
	if cfg.Validator.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Validator.RedisAddr})
		v.SetProcessWideCSCACache(validator.NewProcessWideCSCACache(rdb, cfg.Validator.RedisCacheTTL.Duration))
	}
	pub := directory.New(dirClient, cfg.Directory.BaseDN, cfg.Directory.BatchSize, log_, core.NoopProgressSink{})

	handle := func(ctx context.Context, job queue.UploadJob) error {
		pf, err := parser.Parse(ctx, store, job.UploadId, job.Format, job.SourceFilename, job.Raw)
		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		pkdMetrics.IngestFilesTotal.WithLabelValues(string(job.Format), outcome).Inc()
		if err != nil {
			return err
		}
		for range pf.Certificates {
			pkdMetrics.IngestEntriesTotal.WithLabelValues("certificate").Inc()
		}
		for range pf.CRLs {
			pkdMetrics.IngestEntriesTotal.WithLabelValues("crl").Inc()
		}

		resp, err := v.Validate(ctx, pf)
		if err != nil {
			log_.Err(err, "validate failed", "uploadId", job.UploadId)
			pkdMetrics.ValidatorRunsTotal.WithLabelValues("full", "error").Inc()
			return err
		}
		pkdMetrics.ValidatorRunsTotal.WithLabelValues("full", "success").Inc()
		pkdMetrics.ValidatorCertsProcessed.WithLabelValues("accepted").Add(float64(len(resp.CertificateIds)))

		certs, err := store.FindByUploadId(ctx, job.UploadId)
		if err != nil {
			log_.Err(err, "loading validated certificates for publish", "uploadId", job.UploadId)
			return err
		}
		if err := pub.PublishCertificates(ctx, job.UploadId, certs); err != nil {
			log_.Err(err, "publishing certificates", "uploadId", job.UploadId)
			pkdMetrics.DirectoryWritesTotal.WithLabelValues("error").Inc()
			return err
		}
		pkdMetrics.DirectoryWritesTotal.WithLabelValues("success").Add(float64(len(certs)))
		return nil
	}

	if err := queue.RunWorkerPool(ctx, q, cfg.Ingest.WorkerCount, handle); err != nil && ctx.Err() == nil {
		log.Fatalf("pkd-ingest: worker pool exited: %v", err)
	}
}

func serveDebug(addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, mux); err != nil {
		fmt.Fprintf(os.Stderr, "pkd-ingest: debug server exited: %v\n", err)
	}
}

func awaitShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	<-sigChan
	cancel()
}
