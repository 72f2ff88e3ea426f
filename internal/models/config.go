package models

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// StageBenchmark is the caller-supplied target and P95 ceiling for a stage,
// in minutes. Benchmarks are configuration, never derived from data.
type StageBenchmark struct {
	Target float64 `mapstructure:"target"`
	P95Max float64 `mapstructure:"p95_max"`
}

// PeakWindow is an hour-of-day window, inclusive start and exclusive end.
type PeakWindow struct {
	Start int `mapstructure:"start"`
	End   int `mapstructure:"end"`
}

// Contains reports whether the hour falls inside the window.
func (w PeakWindow) Contains(hour int) bool {
	return hour >= w.Start && hour < w.End
}

type CloudStorageConfig struct {
	Provider   string `mapstructure:"provider"`
	Region     string `mapstructure:"region"`
	BucketName string `mapstructure:"bucket_name"`
	KeyPrefix  string `mapstructure:"key_prefix"`
}

// Config carries every threshold and knob the engines consume. It is built
// once per run and threaded through engine calls explicitly; the engines
// keep no ambient global state.
type Config struct {
	// Delivery thresholds (minutes).
	DeliveryTargetMinutes   float64 `mapstructure:"delivery_target_minutes"`
	DeliveryWarningMinutes  float64 `mapstructure:"delivery_warning_minutes"`
	DeliveryCriticalMinutes float64 `mapstructure:"delivery_critical_minutes"`

	// Per-stage benchmarks, keyed by stage name.
	StageBenchmarks map[string]StageBenchmark `mapstructure:"stage_benchmarks"`

	// Oven operating band, degrees Celsius.
	OvenTempMinC     float64 `mapstructure:"oven_temp_min_c"`
	OvenTempOptimalC float64 `mapstructure:"oven_temp_optimal_c"`
	OvenTempMaxC     float64 `mapstructure:"oven_temp_max_c"`

	// Peak-hour windows.
	PeakLunch  PeakWindow `mapstructure:"peak_lunch"`
	PeakDinner PeakWindow `mapstructure:"peak_dinner"`

	// KPI targets, percentages unless noted.
	OnTimePctTarget       float64 `mapstructure:"on_time_pct_target"`
	ComplaintRateTarget   float64 `mapstructure:"complaint_rate_target"`
	AvgDeliveryMinTarget  float64 `mapstructure:"avg_delivery_min_target"`
	AvgPrepMinTarget      float64 `mapstructure:"avg_prep_min_target"`

	// Statistical minimums.
	MinOvenSample         int `mapstructure:"min_oven_sample"`
	MinComplaintPositives int `mapstructure:"min_complaint_positives"`
	MinStaffOrders        int `mapstructure:"min_staff_orders"`

	// Complaint model.
	CVFolds        int     `mapstructure:"cv_folds"`
	RiskThreshold  float64 `mapstructure:"risk_threshold"`
	StaffBuckets   int     `mapstructure:"staff_buckets"` // learned buckets per open-cardinality column
	TrainEpochs    int     `mapstructure:"train_epochs"`
	LearningRate   float64 `mapstructure:"learning_rate"`
	L2Penalty      float64 `mapstructure:"l2_penalty"`

	// Forecasting.
	ForecastFolds      int     `mapstructure:"forecast_folds"`
	SeasonLength       int     `mapstructure:"season_length"` // periods per season, 24 for hourly data
	MinTrainFraction   float64 `mapstructure:"min_train_fraction"`
	BoostRounds        int     `mapstructure:"boost_rounds"`
	BoostDepth         int     `mapstructure:"boost_depth"`
	BoostLearningRate  float64 `mapstructure:"boost_learning_rate"`

	// Staffing translation.
	OrdersPerPrepStaff float64 `mapstructure:"orders_per_prep_staff"`
	OrdersPerDriver    float64 `mapstructure:"orders_per_driver"`
	MinStaffPerHour    int     `mapstructure:"min_staff_per_hour"`

	// Result cache.
	CacheTTL time.Duration `mapstructure:"cache_ttl"`

	// Output plumbing.
	OutputPath        string             `mapstructure:"output_path"`
	OutputFolder      string             `mapstructure:"output_folder"`
	OutputFormat      string             `mapstructure:"output_format"`      // "json", "csv" or "parquet"
	OutputDestination string             `mapstructure:"output_destination"` // "local" or "cloud"
	CloudStorage      CloudStorageConfig `mapstructure:"cloud_storage"`
	KafkaEnabled      bool               `mapstructure:"kafka_enabled"`
	KafkaBrokerList   string             `mapstructure:"kafka_broker_list"`
	KafkaTopicPrefix  string             `mapstructure:"kafka_topic_prefix"`
	PostgresDSN       string             `mapstructure:"postgres_dsn"`
}

// setDefaults registers the out-of-the-box thresholds with viper. Callers
// override any of these via config file, flags or environment.
func setDefaults() {
	viper.SetDefault("delivery_target_minutes", 30.0)
	viper.SetDefault("delivery_warning_minutes", 25.0)
	viper.SetDefault("delivery_critical_minutes", 40.0)
	viper.SetDefault("stage_benchmarks", map[string]map[string]float64{
		StageDoughPrep: {"target": 5, "p95_max": 8},
		StageStyling:   {"target": 4, "p95_max": 7},
		StageOven:      {"target": 10, "p95_max": 14},
		StageBoxing:    {"target": 2, "p95_max": 4},
	})
	viper.SetDefault("oven_temp_min_c", 220.0)
	viper.SetDefault("oven_temp_optimal_c", 260.0)
	viper.SetDefault("oven_temp_max_c", 300.0)
	viper.SetDefault("peak_lunch", map[string]int{"start": 11, "end": 14})
	viper.SetDefault("peak_dinner", map[string]int{"start": 17, "end": 21})
	viper.SetDefault("on_time_pct_target", 85.0)
	viper.SetDefault("complaint_rate_target", 5.0)
	viper.SetDefault("avg_delivery_min_target", 25.0)
	viper.SetDefault("avg_prep_min_target", 20.0)
	viper.SetDefault("min_oven_sample", 10)
	viper.SetDefault("min_complaint_positives", 20)
	viper.SetDefault("min_staff_orders", 10)
	viper.SetDefault("cv_folds", 5)
	viper.SetDefault("risk_threshold", 0.5)
	viper.SetDefault("staff_buckets", 12)
	viper.SetDefault("train_epochs", 300)
	viper.SetDefault("learning_rate", 0.1)
	viper.SetDefault("l2_penalty", 0.001)
	viper.SetDefault("forecast_folds", 3)
	viper.SetDefault("season_length", 24)
	viper.SetDefault("min_train_fraction", 0.6)
	viper.SetDefault("boost_rounds", 60)
	viper.SetDefault("boost_depth", 2)
	viper.SetDefault("boost_learning_rate", 0.1)
	viper.SetDefault("orders_per_prep_staff", 10.0)
	viper.SetDefault("orders_per_driver", 5.0)
	viper.SetDefault("min_staff_per_hour", 1)
	viper.SetDefault("cache_ttl", "15m")
	viper.SetDefault("output_path", "output")
	viper.SetDefault("output_folder", "opsight")
	viper.SetDefault("output_format", "json")
	viper.SetDefault("output_destination", "local")
	viper.SetDefault("kafka_topic_prefix", "opsight")
}

// LoadConfig initializes and reads the configuration using Viper.
func LoadConfig(cfgFile string) (*Config, error) {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath("examples")
		viper.SetConfigName("config")
		viper.SetConfigType("json")
	}

	viper.AutomaticEnv()
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		// Defaults cover every engine threshold, so a missing file is fine.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgFile != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	decoderConfigOption := viper.DecoderConfigOption(func(config *mapstructure.DecoderConfig) {
		config.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			config.DecodeHook,
			mapstructure.StringToTimeDurationHookFunc(),
		)
	})
	if err := viper.Unmarshal(&config, decoderConfigOption); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %w", err)
	}

	return &config, nil
}

// DefaultConfig returns a Config populated with the viper defaults only.
// Used by tests and library callers that bypass file loading.
func DefaultConfig() *Config {
	return &Config{
		DeliveryTargetMinutes:   30,
		DeliveryWarningMinutes:  25,
		DeliveryCriticalMinutes: 40,
		StageBenchmarks: map[string]StageBenchmark{
			StageDoughPrep: {Target: 5, P95Max: 8},
			StageStyling:   {Target: 4, P95Max: 7},
			StageOven:      {Target: 10, P95Max: 14},
			StageBoxing:    {Target: 2, P95Max: 4},
		},
		OvenTempMinC:          220,
		OvenTempOptimalC:      260,
		OvenTempMaxC:          300,
		PeakLunch:             PeakWindow{Start: 11, End: 14},
		PeakDinner:            PeakWindow{Start: 17, End: 21},
		OnTimePctTarget:       85,
		ComplaintRateTarget:   5,
		AvgDeliveryMinTarget:  25,
		AvgPrepMinTarget:      20,
		MinOvenSample:         10,
		MinComplaintPositives: 20,
		MinStaffOrders:        10,
		CVFolds:               5,
		RiskThreshold:         0.5,
		StaffBuckets:          12,
		TrainEpochs:           300,
		LearningRate:          0.1,
		L2Penalty:             0.001,
		ForecastFolds:         3,
		SeasonLength:          24,
		MinTrainFraction:      0.6,
		BoostRounds:           60,
		BoostDepth:            2,
		BoostLearningRate:     0.1,
		OrdersPerPrepStaff:    10,
		OrdersPerDriver:       5,
		MinStaffPerHour:       1,
		CacheTTL:              15 * time.Minute,
		OutputPath:            "output",
		OutputFolder:          "opsight",
		OutputFormat:          "json",
		OutputDestination:     "local",
		KafkaTopicPrefix:      "opsight",
	}
}
