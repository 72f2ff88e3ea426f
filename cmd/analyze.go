package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pizzaops/opsight/internal/analysis"
	"github.com/pizzaops/opsight/internal/complaint"
	"github.com/pizzaops/opsight/internal/loader"
	"github.com/pizzaops/opsight/internal/models"
	"github.com/pizzaops/opsight/internal/output"
	"github.com/pizzaops/opsight/internal/publisher"
	"github.com/pizzaops/opsight/internal/repositories/postgres"
	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [orders.csv]",
	Short: "Run the full analysis pipeline on an order export",
	Long: `analyze loads a POS order export (or previously ingested orders from
Postgres), engineers features, detects stage and delivery-area bottlenecks,
correlates oven temperature with outcomes, trains the complaint risk
classifier and exports every artifact.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().Bool("skip-risk-model", false, "Skip complaint risk model training")
	analyzeCmd.Flags().Bool("from-postgres", false, "Load orders from Postgres instead of a CSV export")
	analyzeCmd.Flags().Int("last-days", 0, "With --from-postgres, only analyze orders placed in the last N days")
	analyzeCmd.Flags().Bool("save-findings", false, "Persist bottleneck findings to Postgres")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := models.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	fromPostgres, _ := cmd.Flags().GetBool("from-postgres")
	saveFindings, _ := cmd.Flags().GetBool("save-findings")

	var pool *pgxpool.Pool
	if fromPostgres || saveFindings {
		if cfg.PostgresDSN == "" {
			return fmt.Errorf("postgres_dsn is not configured")
		}
		pool, err = pgxpool.New(cmd.Context(), cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("error connecting to database: %w", err)
		}
		defer pool.Close()
	}

	var orders []models.OrderRecord
	report := &loader.Report{Status: "success"}
	source := "postgres"
	switch {
	case fromPostgres:
		repo := postgres.NewOrderRepository(pool)
		if lastDays, _ := cmd.Flags().GetInt("last-days"); lastDays > 0 {
			to := time.Now().UTC()
			orders, err = repo.GetBetween(cmd.Context(), to.AddDate(0, 0, -lastDays), to)
		} else {
			orders, err = repo.GetAll(cmd.Context())
		}
		if err != nil {
			return fmt.Errorf("error loading orders from database: %w", err)
		}
		report.RowsRaw = len(orders)
		report.RowsClean = len(orders)
	case len(args) == 1:
		source = args[0]
		orders, report, err = loader.LoadFile(args[0])
		if err != nil {
			return err
		}
		for _, w := range report.Warnings {
			log.Printf("load warning: %s", w)
		}
	default:
		return fmt.Errorf("an orders.csv argument or --from-postgres is required")
	}
	if len(orders) == 0 {
		return fmt.Errorf("no usable orders in %s", source)
	}

	coord := analysis.NewCoordinator(cfg)
	defer coord.Close()
	fp, err := coord.SetDataset(orders)
	if err != nil {
		return err
	}

	reporter, err := buildReporter(cfg)
	if err != nil {
		return err
	}
	defer reporter.Close()

	if err := reporter.WriteLoadReport(report); err != nil {
		return err
	}
	if err := reporter.WriteFeatureRows(coord.Rows()); err != nil {
		return err
	}

	bottlenecks, err := coord.Bottlenecks()
	if err != nil {
		return err
	}
	if err := reporter.WriteBottlenecks(bottlenecks); err != nil {
		return err
	}
	if saveFindings {
		if err := postgres.NewFindingRepository(pool).SaveBottlenecks(cmd.Context(), string(fp), bottlenecks); err != nil {
			return fmt.Errorf("error saving findings: %w", err)
		}
	}

	breakdown, err := coord.StageBreakdown()
	if err != nil {
		return err
	}
	if err := reporter.WriteStageBreakdown(breakdown); err != nil {
		return err
	}

	kpis, err := coord.KPISummary()
	if err != nil {
		return err
	}
	for _, kv := range []struct {
		name string
		kpi  models.KPIValue
	}{
		{"on_time_pct", kpis.Overview.OnTimePct},
		{"complaint_rate", kpis.Overview.ComplaintRate},
		{"avg_delivery_min", kpis.Overview.AvgDeliveryMin},
		{"avg_prep_min", kpis.Overview.AvgPrepMin},
	} {
		if kv.kpi.Status != models.KPIStatusGood {
			log.Printf("kpi %s at %s: %.1f against target %.1f", kv.name, kv.kpi.Status, kv.kpi.Value, kv.kpi.Target)
		}
	}
	if err := reporter.WriteKPISummary(kpis); err != nil {
		return err
	}

	contributions, err := coord.StageContributions()
	if err != nil {
		return err
	}
	if err := reporter.WriteStageContributions(contributions); err != nil {
		return err
	}

	variability, err := coord.Variability()
	if err != nil {
		return err
	}
	if !variability.DataSufficient {
		log.Printf("variability analysis degraded: %s", variability.Reason)
	}
	if err := reporter.WriteVariability(variability); err != nil {
		return err
	}

	areas, err := coord.AreaBottlenecks()
	if err != nil {
		return err
	}
	if err := reporter.WriteAreaFindings(areas); err != nil {
		return err
	}

	oven, err := coord.OvenCorrelation()
	if err != nil {
		return err
	}
	if !oven.DataSufficient {
		log.Printf("oven analysis skipped: %s", oven.Reason)
	}
	if err := reporter.WriteOvenCorrelation(oven); err != nil {
		return err
	}

	skipRisk, _ := cmd.Flags().GetBool("skip-risk-model")
	if !skipRisk {
		if err := exportRiskArtifacts(cmd.Context(), coord, reporter); err != nil {
			return err
		}
	}

	if cfg.OutputFormat == "parquet" || cfg.OutputDestination != "local" {
		exporter, err := output.NewParquetExporter(cfg)
		if err != nil {
			return err
		}
		if err := exporter.ExportFeatureRows(coord.Rows(), "feature_rows.parquet"); err != nil {
			return err
		}
	}

	fmt.Fprintf(os.Stdout, "analysis complete for dataset %s: %d orders, %d bottleneck findings\n",
		fp.Short(), len(orders), len(bottlenecks))
	return nil
}

func exportRiskArtifacts(ctx context.Context, coord *analysis.Coordinator, reporter *output.Reporter) error {
	metrics, err := coord.TrainComplaintModel(ctx)
	if err != nil {
		var insufficient *models.InsufficientDataError
		if errors.As(err, &insufficient) {
			log.Printf("complaint model skipped: %v", err)
			return nil
		}
		return err
	}
	log.Printf("complaint model trained: F1 %.3f (±%.3f), AUC %.3f over %d orders",
		metrics.F1Mean, metrics.F1Std, metrics.AUCMean, metrics.NSamples)

	model := coord.ComplaintModel()
	scores, err := model.Score(coord.Rows())
	if err != nil {
		return err
	}
	if err := reporter.WriteRiskScores(scores); err != nil {
		return err
	}
	if err := reporter.WriteFeatureImportance(model.GlobalImportance(15)); err != nil {
		return err
	}

	return reporter.WriteRootCause(complaint.RootCauseMatrix(coord.Rows()))
}

func buildReporter(cfg *models.Config) (*output.Reporter, error) {
	var dest output.Destination
	if cfg.KafkaEnabled {
		pub, err := publisher.NewKafkaPublisher(cfg)
		if err != nil {
			return nil, err
		}
		dest = pub
	} else {
		switch cfg.OutputFormat {
		case "csv":
			dest = output.NewCSVOutput(cfg.OutputPath, cfg.OutputFolder)
		case "json", "parquet":
			// parquet runs export a JSON copy of row-level artifacts too
			dest = output.NewJSONOutput(cfg.OutputPath, cfg.OutputFolder)
		case "console":
			dest = &output.ConsoleOutput{}
		default:
			return nil, fmt.Errorf("unsupported output format: %s", cfg.OutputFormat)
		}
	}
	return output.NewReporter(dest), nil
}
