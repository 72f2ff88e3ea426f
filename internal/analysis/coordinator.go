package analysis

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/pizzaops/opsight/internal/bottleneck"
	"github.com/pizzaops/opsight/internal/complaint"
	"github.com/pizzaops/opsight/internal/features"
	"github.com/pizzaops/opsight/internal/forecast"
	"github.com/pizzaops/opsight/internal/kpi"
	"github.com/pizzaops/opsight/internal/models"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Coordinator owns the active dataset and every model trained from it.
// Training runs are deduplicated per (fingerprint, model kind): concurrent
// callers asking for the same fit share one execution. Loading a new
// dataset cancels in-flight work for the old one, and results from a
// cancelled run are never installed.
type Coordinator struct {
	cfg      *models.Config
	cache    *Cache
	flight   singleflight.Group
	detector *bottleneck.Detector
	kpis     *kpi.Engine

	mu        sync.Mutex
	fp        Fingerprint
	rows      []models.FeatureRow
	series    []forecast.SeriesPoint
	cancel    context.CancelFunc
	runCtx    context.Context
	complaint *complaint.Model
	ensemble  *forecast.Ensemble
}

func NewCoordinator(cfg *models.Config) *Coordinator {
	return &Coordinator{
		cfg:      cfg,
		cache:    NewCache(cfg.CacheTTL),
		detector: bottleneck.NewDetector(cfg),
		kpis:     kpi.NewEngine(cfg),
	}
}

// SetDataset ingests a new batch of orders: features are engineered, the
// dataset is fingerprinted, and if the content differs from the active
// dataset every in-flight training run is cancelled and existing models are
// marked stale. Re-uploading identical data is a no-op.
func (c *Coordinator) SetDataset(orders []models.OrderRecord) (Fingerprint, error) {
	rows, err := features.Engineer(orders, c.cfg)
	if err != nil {
		return "", err
	}
	fp := FingerprintOrders(orders)

	c.mu.Lock()
	defer c.mu.Unlock()
	if fp == c.fp {
		log.Printf("dataset %s unchanged, keeping models", fp.Short())
		return fp, nil
	}
	if c.cancel != nil {
		c.cancel()
		c.cache.Invalidate(c.fp)
	}
	if c.complaint != nil {
		c.complaint.MarkStale()
	}
	if c.ensemble != nil {
		c.ensemble.MarkStale()
	}

	c.runCtx, c.cancel = context.WithCancel(context.Background())
	c.fp = fp
	c.rows = rows
	c.series = forecast.BuildHourlySeries(rows)
	log.Printf("dataset %s loaded: %d orders, %d hourly buckets", fp.Short(), len(orders), len(c.series))
	return fp, nil
}

// Fingerprint returns the active dataset fingerprint.
func (c *Coordinator) Fingerprint() Fingerprint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fp
}

// Rows returns the engineered feature rows of the active dataset.
func (c *Coordinator) Rows() []models.FeatureRow {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rows
}

// snapshot captures the state a training run binds to. A run installs its
// result only when the fingerprint it started from is still active.
func (c *Coordinator) snapshot() (Fingerprint, []models.FeatureRow, []forecast.SeriesPoint, context.Context, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fp == "" {
		return "", nil, nil, nil, &models.InsufficientDataError{Op: "train", Needed: 1, Got: 0}
	}
	return c.fp, c.rows, c.series, c.runCtx, nil
}

// TrainComplaintModel fits the complaint risk classifier for the active
// dataset, sharing a single fit across concurrent callers.
func (c *Coordinator) TrainComplaintModel(ctx context.Context) (complaint.Metrics, error) {
	fp, rows, _, runCtx, err := c.snapshot()
	if err != nil {
		return complaint.Metrics{}, err
	}

	key := fmt.Sprintf("%s|complaint", fp)
	res, err, _ := c.flight.Do(key, func() (any, error) {
		model := complaint.NewModel(c.cfg)
		metrics, err := model.Train(rows)
		if err != nil {
			return nil, err
		}
		if err := runCtx.Err(); err != nil {
			return nil, err
		}
		c.mu.Lock()
		if c.fp == fp {
			c.complaint = model
		}
		c.mu.Unlock()
		return metrics, nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return complaint.Metrics{}, ctx.Err()
		}
		return complaint.Metrics{}, err
	}
	return res.(complaint.Metrics), nil
}

// TrainForecastEnsemble fits the demand ensemble for the active dataset,
// sharing a single fit across concurrent callers.
func (c *Coordinator) TrainForecastEnsemble(ctx context.Context) error {
	fp, _, series, runCtx, err := c.snapshot()
	if err != nil {
		return err
	}

	key := fmt.Sprintf("%s|forecast", fp)
	_, err, _ = c.flight.Do(key, func() (any, error) {
		ens := forecast.NewEnsemble(c.cfg)
		if err := ens.Fit(runCtx, series); err != nil {
			return nil, err
		}
		c.mu.Lock()
		if c.fp == fp {
			c.ensemble = ens
		}
		c.mu.Unlock()
		return nil, nil
	})
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// TrainAll fits both model families in parallel. A failure in one does not
// abort the other; the first error is returned after both finish.
func (c *Coordinator) TrainAll(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error {
		_, err := c.TrainComplaintModel(ctx)
		return err
	})
	g.Go(func() error {
		return c.TrainForecastEnsemble(ctx)
	})
	return g.Wait()
}

// ComplaintModel returns the installed classifier, nil when never trained.
func (c *Coordinator) ComplaintModel() *complaint.Model {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.complaint
}

// ForecastEnsemble returns the installed ensemble, nil when never trained.
func (c *Coordinator) ForecastEnsemble() *forecast.Ensemble {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ensemble
}

// Bottlenecks runs stage bottleneck detection, cached per dataset.
func (c *Coordinator) Bottlenecks() ([]models.BottleneckFinding, error) {
	fp, rows, _, _, err := c.snapshot()
	if err != nil {
		return nil, err
	}
	if v, ok := c.cache.Get(fp, "bottlenecks", ""); ok {
		return v.([]models.BottleneckFinding), nil
	}
	findings := c.detector.DetectBottlenecks(rows, c.cfg.StageBenchmarks)
	c.cache.Put(fp, "bottlenecks", "", findings)
	return findings, nil
}

// StageBreakdown summarizes stage duration distributions, cached per dataset.
func (c *Coordinator) StageBreakdown() ([]models.StageStats, error) {
	fp, rows, _, _, err := c.snapshot()
	if err != nil {
		return nil, err
	}
	if v, ok := c.cache.Get(fp, "stage_breakdown", ""); ok {
		return v.([]models.StageStats), nil
	}
	breakdown := c.detector.StageBreakdown(rows)
	c.cache.Put(fp, "stage_breakdown", "", breakdown)
	return breakdown, nil
}

// KPISummary computes the executive summary, cached per dataset.
func (c *Coordinator) KPISummary() (models.KPISummary, error) {
	fp, rows, _, _, err := c.snapshot()
	if err != nil {
		return models.KPISummary{}, err
	}
	if v, ok := c.cache.Get(fp, "kpi_summary", ""); ok {
		return v.(models.KPISummary), nil
	}
	summary := c.kpis.Summarize(rows)
	c.cache.Put(fp, "kpi_summary", "", summary)
	return summary, nil
}

// Variability runs the process variability analysis, cached per dataset.
func (c *Coordinator) Variability() (models.VariabilityReport, error) {
	fp, rows, _, _, err := c.snapshot()
	if err != nil {
		return models.VariabilityReport{}, err
	}
	if v, ok := c.cache.Get(fp, "variability", ""); ok {
		return v.(models.VariabilityReport), nil
	}
	report := c.detector.Variability(rows)
	c.cache.Put(fp, "variability", "", report)
	return report, nil
}

// StageContributions computes average stage shares, cached per dataset.
func (c *Coordinator) StageContributions() ([]models.StageContribution, error) {
	fp, rows, _, _, err := c.snapshot()
	if err != nil {
		return nil, err
	}
	if v, ok := c.cache.Get(fp, "contributions", ""); ok {
		return v.([]models.StageContribution), nil
	}
	contributions := c.detector.StageContributions(rows)
	c.cache.Put(fp, "contributions", "", contributions)
	return contributions, nil
}

// OvenCorrelation runs the oven temperature analysis, cached per dataset.
func (c *Coordinator) OvenCorrelation() (models.OvenCorrelation, error) {
	fp, rows, _, _, err := c.snapshot()
	if err != nil {
		return models.OvenCorrelation{}, err
	}
	if v, ok := c.cache.Get(fp, "oven", ""); ok {
		return v.(models.OvenCorrelation), nil
	}
	corr := c.detector.OvenCorrelation(rows)
	c.cache.Put(fp, "oven", "", corr)
	return corr, nil
}

// AreaBottlenecks runs the delivery area analysis, cached per dataset.
func (c *Coordinator) AreaBottlenecks() ([]models.AreaFinding, error) {
	fp, rows, _, _, err := c.snapshot()
	if err != nil {
		return nil, err
	}
	if v, ok := c.cache.Get(fp, "areas", ""); ok {
		return v.([]models.AreaFinding), nil
	}
	findings := c.detector.AreaBottlenecks(rows)
	c.cache.Put(fp, "areas", "", findings)
	return findings, nil
}

// Forecast produces the ensemble demand forecast, cached per horizon.
func (c *Coordinator) Forecast(horizon int) ([]models.ForecastPoint, error) {
	fp, _, _, _, err := c.snapshot()
	if err != nil {
		return nil, err
	}
	ens := c.ForecastEnsemble()
	if ens == nil {
		return nil, &models.ModelTrainingError{Model: "ensemble", Err: fmt.Errorf("not trained for dataset %s", fp.Short())}
	}
	params := fmt.Sprintf("h=%d", horizon)
	if v, ok := c.cache.Get(fp, "forecast", params); ok {
		return v.([]models.ForecastPoint), nil
	}
	points, err := ens.Predict(horizon)
	if err != nil {
		return nil, err
	}
	c.cache.Put(fp, "forecast", params, points)
	return points, nil
}

// Close cancels any in-flight training.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()
}
