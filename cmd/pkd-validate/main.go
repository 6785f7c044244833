// Command pkd-validate is a one-shot operator tool: it parses,
// validates, and publishes a single LDIF/CMS file outside the durable
// queue, for backfills and manual re-runs (spec §4.1-§4.3). Grounded
// on the teacher's one-shot admin CLI shape (cmd/orphan-finder,
// cmd/admin-revoker: flag-parsed, single execution, no DebugServer).
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmhodges/clock"
	"github.com/letsencrypt/borp"

	"github.com/iland112/local-pkd-sub001/config"
	"github.com/iland112/local-pkd-sub001/core"
	"github.com/iland112/local-pkd-sub001/directory"
	"github.com/iland112/local-pkd-sub001/parser"
	"github.com/iland112/local-pkd-sub001/pkdlog"
	"github.com/iland112/local-pkd-sub001/trust"
	"github.com/iland112/local-pkd-sub001/validator"
)

func main() {
	configPath := flag.String("config", "", "path to the PKD configuration YAML file")
	inputPath := flag.String("file", "", "path to the LDIF/CMS file to validate and publish")
	format := flag.String("format", string(core.FormatEmrtdCompleteLDIF), "file format: one of EMRTD_COMPLETE_LDIF, EMRTD_DELTA_LDIF, CSCA_MASTER_LIST_LDIF, MASTER_LIST_SIGNED_CMS, DSC_NON_CONFORMING_LDIF")
	flag.Parse()

	if *inputPath == "" {
		fmt.Fprintln(os.Stderr, "pkd-validate: -file is required")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("pkd-validate: loading config: %v", err)
	}

	raw, err := os.ReadFile(*inputPath)
	if err != nil {
		log.Fatalf("pkd-validate: reading %s: %v", *inputPath, err)
	}

	rawDB, err := sql.Open("mysql", string(cfg.Database.DBConnect))
	if err != nil {
		log.Fatalf("pkd-validate: opening database: %v", err)
	}
	rawDB.SetMaxOpenConns(cfg.Database.MaxOpenConn)
	rawDB.SetMaxIdleConns(cfg.Database.MaxIdleConn)
	dbMap := &borp.DbMap{Db: rawDB, Dialect: borp.MySQLDialect{Engine: "InnoDB", Encoding: "UTF8"}}

	store := trust.NewSQLStore(dbMap)
	dirClient := directory.NewSQLClient(dbMap)
	logger := pkdlog.New("pkd-validate")

	ctx := context.Background()
	uploadId := core.NewUploadId()

	pf, err := parser.Parse(ctx, store, uploadId, core.FileFormat(*format), *inputPath, raw)
	if err != nil {
		log.Fatalf("pkd-validate: parsing: %v", err)
	}
	logger.Info("parsed", "uploadId", uploadId, "certificates", len(pf.Certificates), "crls", len(pf.CRLs), "errors", len(pf.Errors))

	valCfg := validator.DefaultConfig()
	valCfg.StrictCRLMode = cfg.Validator.StrictCRLMode
	valCfg.CSCACacheMaxBytes = cfg.Validator.CSCACacheMaxBytes
	valCfg.ClockSkewTolerance = cfg.Validator.ClockSkewTolerance.Duration
	v := validator.New(store, core.NoopProgressSink{}, clock.New(), valCfg)

	resp, err := v.Validate(ctx, pf)
	if err != nil {
		log.Fatalf("pkd-validate: validating: %v", err)
	}
	logger.Info("validated", "uploadId", uploadId, "accepted", len(resp.CertificateIds), "crls", len(resp.CRLIds))

	certs, err := store.FindByUploadId(ctx, uploadId)
	if err != nil {
		log.Fatalf("pkd-validate: loading validated certificates: %v", err)
	}

	pub := directory.New(dirClient, cfg.Directory.BaseDN, cfg.Directory.BatchSize, logger, core.NoopProgressSink{})
	if err := pub.PublishCertificates(ctx, uploadId, certs); err != nil {
		log.Fatalf("pkd-validate: publishing certificates: %v", err)
	}
	logger.Info("published", "uploadId", uploadId, "count", len(certs))
}
