package cmd

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pizzaops/opsight/internal/factories"
	"github.com/pizzaops/opsight/internal/models"
	"github.com/pizzaops/opsight/internal/repositories/postgres"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var generateCmd = &cobra.Command{
	Use:   "generate [orders.csv]",
	Short: "Generate a synthetic order history",
	Long: `generate produces a synthetic POS-style order export for demos and
model testing. The built-in scenario includes one slow delivery area and a
cold-running oven so every analysis engine has something to find.`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().Int("orders", 2000, "Number of orders to generate")
	generateCmd.Flags().Int("days", 28, "Number of days the history spans")
	generateCmd.Flags().Int64("seed", 42, "Random seed")
	generateCmd.Flags().Bool("to-postgres", false, "Also insert the orders into Postgres")
	generateCmd.Flags().Bool("truncate", false, "With --to-postgres, empty the orders table first")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := models.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	count, _ := cmd.Flags().GetInt("orders")
	days, _ := cmd.Flags().GetInt("days")
	seed, _ := cmd.Flags().GetInt64("seed")
	toPostgres, _ := cmd.Flags().GetBool("to-postgres")

	factory := factories.NewOrderFactory(cfg, factories.DefaultScenario(), seed)
	end := time.Now().UTC().Truncate(time.Hour)

	start := end.AddDate(0, 0, -days)
	bar := progressbar.Default(int64(count), "generating orders")
	orders := make([]models.OrderRecord, 0, count)
	for i := 0; i < count; i++ {
		orders = append(orders, *factory.CreateOrder(factory.SampleTime(start, days)))
		bar.Add(1)
	}

	if err := writeOrdersCSV(args[0], orders); err != nil {
		return err
	}

	if toPostgres {
		if cfg.PostgresDSN == "" {
			return fmt.Errorf("postgres_dsn is not configured")
		}
		ctx := context.Background()
		pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("error connecting to database: %w", err)
		}
		defer pool.Close()
		repo := postgres.NewOrderRepository(pool)
		if truncate, _ := cmd.Flags().GetBool("truncate"); truncate {
			if err := repo.DeleteAll(ctx); err != nil {
				return fmt.Errorf("error truncating orders: %w", err)
			}
		}
		if err := repo.BulkCreate(ctx, orders); err != nil {
			return err
		}
		total, err := repo.Count(ctx)
		if err != nil {
			return err
		}
		log.Printf("orders table now holds %d rows", total)
	}

	fmt.Fprintf(os.Stdout, "wrote %d orders to %s\n", len(orders), args[0])
	return nil
}

// writeOrdersCSV emits the raw POS export format that the loader accepts,
// leading spaces on the prep columns included.
func writeOrdersCSV(path string, orders []models.OrderRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{
		"Pizza No.", "Order Date", "Order Time", " Base prep (mins)",
		" Styling (mins)", " Cooking Time (mins)", "Boxing (mins)",
		"Delivery (mins)", "Oven Temp °C", "Order Mode", "Size", "Area",
		"Order Taker", "Dough Prep", "Stylist", "Oven", "Boxer", "Deliverer",
		"Cust. complaint", "Reason",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, o := range orders {
		temp := ""
		if o.OvenTemperature != nil {
			temp = strconv.FormatFloat(*o.OvenTemperature, 'f', 1, 64)
		}
		complaint := "No"
		if o.Complaint {
			complaint = "Yes"
		}
		row := []string{
			o.OrderID,
			o.PlacedAt.Format("2006-01-02"),
			o.PlacedAt.Format("15:04:05"),
			strconv.FormatFloat(o.DoughPrepTime, 'f', 2, 64),
			strconv.FormatFloat(o.StylingTime, 'f', 2, 64),
			strconv.FormatFloat(o.OvenTime, 'f', 2, 64),
			strconv.FormatFloat(o.BoxingTime, 'f', 2, 64),
			strconv.FormatFloat(o.DeliveryDuration, 'f', 2, 64),
			temp,
			o.OrderMode,
			o.PizzaSize,
			o.DeliveryArea,
			o.OrderTaker,
			o.DoughPrepStaff,
			o.Stylist,
			o.OvenOperator,
			o.Boxer,
			o.DeliveryDriver,
			complaint,
			o.ComplaintReason,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
