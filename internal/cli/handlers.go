package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/BartekS5/subjectmap/internal/archive"
	"github.com/BartekS5/subjectmap/internal/config"
	"github.com/BartekS5/subjectmap/internal/credentials"
	"github.com/BartekS5/subjectmap/internal/etl"
	"github.com/BartekS5/subjectmap/internal/transfer"
	"github.com/BartekS5/subjectmap/pkg/database"
	"github.com/BartekS5/subjectmap/pkg/logger"
	"github.com/BartekS5/subjectmap/pkg/models"
)

func runPipeline(ctx context.Context, opts *RunOptions, out io.Writer) error {
	setup, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}
	if opts.Workers > 0 {
		setup.Dispatch.Workers = opts.Workers
	}
	if opts.Timeout > 0 {
		setup.Dispatch.Timeout = opts.Timeout
	}

	log, err := logger.New(setup.SystemLogFile, logger.ParseLevel(setup.LogLevel))
	if err != nil {
		return err
	}
	defer log.Close()

	cleanRules, err := config.LoadCleanRuleset(setup.CleanRuleset)
	if err != nil {
		return err
	}
	groupRules, err := config.LoadGroupRuleset(setup.GroupRuleset)
	if err != nil {
		return err
	}

	source, closeSource, err := buildSource(ctx, setup, cleanRules.RecordElement)
	if err != nil {
		return err
	}
	defer closeSource()

	var validator *etl.SchemaValidator
	if setup.SourceSchemaFile != "" {
		validator, err = etl.NewSchemaValidator(setup.SourceSchemaFile)
		if err != nil {
			return err
		}
	}

	rc := etl.NewRunContext(log, etl.Options{
		OutputDir:      setup.OutputDir,
		ArtifactPrefix: setup.ArtifactPrefix,
		Workers:        setup.Dispatch.Workers,
		Timeout:        setup.Dispatch.Timeout,
		DryRun:         opts.DryRun,
	})

	if setup.Report.OutcomeLog != "" {
		ol, err := etl.OpenOutcomeLog(setup.Report.OutcomeLog)
		if err != nil {
			return err
		}
		defer ol.Close()
		rc.OutcomeLog = ol
	}

	sinks, closeSinks := buildSinks(ctx, setup, log)
	defer closeSinks()

	pipeline := &etl.Pipeline{
		Source:       source,
		Validator:    validator,
		Transformer:  etl.NewTransformer(cleanRules, groupRules),
		Materializer: etl.NewMaterializer(setup.OutputDir, setup.ArtifactPrefix, groupRules),
		CatalogPath:  setup.SiteCatalog,
		Dispatcher: etl.NewDispatcher(
			buildRouter(setup, log),
			credentials.NewResolver(setup.Dispatch.AWSRegion),
			setup.Dispatch.Workers,
			setup.Dispatch.Timeout,
		),
		Sinks: sinks,
	}

	if setup.Archive.Bucket != "" {
		archiver, err := archive.NewMinioArchiver(setup.Archive.Endpoint, setup.Archive.Bucket,
			setup.Archive.AccessKey, setup.Archive.SecretKey, setup.Archive.UseSSL)
		if err != nil {
			return err
		}
		pipeline.Archiver = archiver
	}

	report, err := pipeline.Run(ctx, rc)
	if err != nil {
		log.Errorf("Run %s aborted: %v", rc.RunID, err)
		return err
	}

	printReport(out, report)
	if !report.Complete() {
		return fmt.Errorf("%w: %d failed, %d unmatched", etl.ErrIncompleteDelivery, report.Failed(), len(report.Unmatched))
	}
	return nil
}

// buildSource picks the record source. SQL rows are rendered with the
// clean ruleset's record element so stage 1 reads them back.
func buildSource(ctx context.Context, setup *config.Setup, recordElement string) (etl.Source, func(), error) {
	noop := func() {}

	switch setup.Source.Kind {
	case config.SourceSQL:
		db, err := database.ConnectSQL(ctx, setup.Source.SQLConnectionString)
		if err != nil {
			return nil, noop, err
		}
		return &etl.SQLSource{
			DB:            db,
			Query:         setup.Source.SQLQuery,
			RecordElement: recordElement,
			Timeout:       setup.Source.Timeout,
		}, func() { db.Close() }, nil
	case config.SourceFile:
		return &etl.FileSource{Path: setup.Source.File}, noop, nil
	default:
		return etl.NewREDCapSource(setup.REDCapURI, setup.Token, setup.Source.Timeout), noop, nil
	}
}

// buildRouter wires every transport. A host key database that cannot be
// loaded only disables SFTP; those sites then fail individually.
func buildRouter(setup *config.Setup, log *logger.Logger) *transfer.Router {
	router := &transfer.Router{
		S3:    transfer.NewS3Transport(setup.Dispatch.AWSRegion),
		Local: &transfer.LocalTransport{},
	}

	sftpTransport, err := transfer.NewSFTPTransport(setup.Dispatch.KnownHosts, setup.Dispatch.InsecureIgnoreHostKey)
	if err != nil {
		log.Warnf("SFTP delivery disabled: %v", err)
		return router
	}
	if setup.Dispatch.InsecureIgnoreHostKey {
		log.Warnf("SFTP host key verification is disabled")
	}
	router.SFTP = sftpTransport
	return router
}

func buildSinks(ctx context.Context, setup *config.Setup, log *logger.Logger) ([]etl.ReportSink, func()) {
	var sinks []etl.ReportSink
	closeFn := func() {}

	if setup.Report.File != "" {
		sinks = append(sinks, &etl.FileReportSink{Path: setup.Report.File})
	}

	if setup.Report.MongoConnectionString != "" {
		client, err := database.ConnectMongo(ctx, setup.Report.MongoConnectionString)
		if err != nil {
			log.Errorf("Run reports will not be stored in MongoDB: %v", err)
			return sinks, closeFn
		}
		sinks = append(sinks, etl.NewMongoReportSink(client, setup.Report.MongoDatabase, setup.Report.MongoCollection))
		closeFn = func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(disconnectCtx)
		}
	}
	return sinks, closeFn
}

func printReport(w io.Writer, report *models.RunReport) {
	fmt.Fprintf(w, "Run %s\n", report.RunID)
	fmt.Fprintf(w, "Records: %d in, %d retained, %d dropped\n",
		report.RecordsIn, report.RecordsRetained, report.RecordsDropped)
	fmt.Fprintf(w, "Sites: %d produced, %d delivered, %d failed, %d unmatched\n\n",
		report.GroupsProduced, report.Delivered(), report.Failed(), len(report.Unmatched))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SITE\tSTATUS\tREASON\tCONTACT")
	for _, o := range report.Outcomes {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", o.SiteID, o.Status, dash(o.Reason), dash(o.Contact))
	}
	tw.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
