package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/pizzaops/opsight/internal/analysis"
	"github.com/pizzaops/opsight/internal/forecast"
	"github.com/pizzaops/opsight/internal/loader"
	"github.com/pizzaops/opsight/internal/models"
	"github.com/spf13/cobra"
)

var forecastCmd = &cobra.Command{
	Use:   "forecast [orders.csv]",
	Short: "Forecast hourly demand and plan staffing levels",
	Long: `forecast builds an hourly order series from the export, fits the
demand forecasting ensemble and exports the forecast, the per-model
accuracy comparison and an hour-by-hour staffing plan.`,
	Args: cobra.ExactArgs(1),
	RunE: runForecast,
}

func init() {
	forecastCmd.Flags().Int("horizon", 24, "Forecast horizon in hours")
	rootCmd.AddCommand(forecastCmd)
}

func runForecast(cmd *cobra.Command, args []string) error {
	cfg, err := models.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	horizon, _ := cmd.Flags().GetInt("horizon")

	orders, report, err := loader.LoadFile(args[0])
	if err != nil {
		return err
	}
	for _, w := range report.Warnings {
		log.Printf("load warning: %s", w)
	}
	if len(orders) == 0 {
		return fmt.Errorf("no usable orders in %s", args[0])
	}

	coord := analysis.NewCoordinator(cfg)
	defer coord.Close()
	if _, err := coord.SetDataset(orders); err != nil {
		return err
	}
	if err := coord.TrainForecastEnsemble(cmd.Context()); err != nil {
		return err
	}

	ens := coord.ForecastEnsemble()
	if ens.State() == forecast.EnsembleDegraded {
		log.Printf("ensemble degraded; forecast uses the seasonal-naive fallback")
	}

	points, err := coord.Forecast(horizon)
	if err != nil {
		return err
	}
	plan := forecast.NewPlanner(cfg).Plan(points)

	reporter, err := buildReporter(cfg)
	if err != nil {
		return err
	}
	defer reporter.Close()

	if err := reporter.WriteForecast(points); err != nil {
		return err
	}
	if err := reporter.WriteStaffingPlan(plan); err != nil {
		return err
	}
	if err := reporter.WriteModelScores(ens.CompareModels()); err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "forecast complete: %d hours ahead, ensemble state %s\n",
		len(points), ens.State())
	return nil
}
