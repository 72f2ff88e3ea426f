package output

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pizzaops/opsight/internal/cloudwriter"
	"github.com/pizzaops/opsight/internal/models"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"
)

// featureRowParquet is the flat columnar layout for engineered feature
// rows. Optional values use pointer fields so they land as nullable
// columns instead of zero-filled ones.
type featureRowParquet struct {
	OrderID          string   `parquet:"name=order_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	PlacedAt         int64    `parquet:"name=placed_at, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	OrderMode        string   `parquet:"name=order_mode, type=BYTE_ARRAY, convertedtype=UTF8"`
	DeliveryArea     string   `parquet:"name=delivery_area, type=BYTE_ARRAY, convertedtype=UTF8"`
	DoughPrepTime    float64  `parquet:"name=dough_prep_time, type=DOUBLE"`
	StylingTime      float64  `parquet:"name=styling_time, type=DOUBLE"`
	OvenTime         float64  `parquet:"name=oven_time, type=DOUBLE"`
	BoxingTime       float64  `parquet:"name=boxing_time, type=DOUBLE"`
	DeliveryDuration float64  `parquet:"name=delivery_duration, type=DOUBLE"`
	OvenTemperature  *float64 `parquet:"name=oven_temperature, type=DOUBLE"`
	TotalPrepTime    float64  `parquet:"name=total_prep_time, type=DOUBLE"`
	TotalProcessTime float64  `parquet:"name=total_process_time, type=DOUBLE"`
	OnTime           bool     `parquet:"name=on_time, type=BOOLEAN"`
	HourOfDay        int32    `parquet:"name=hour_of_day, type=INT32"`
	DayOfWeek        int32    `parquet:"name=day_of_week, type=INT32"`
	IsWeekend        bool     `parquet:"name=is_weekend, type=BOOLEAN"`
	IsPeakHour       bool     `parquet:"name=is_peak_hour, type=BOOLEAN"`
	OvenTempZone     *string  `parquet:"name=oven_temp_zone, type=BYTE_ARRAY, convertedtype=UTF8"`
	DelayCategory    string   `parquet:"name=delay_category, type=BYTE_ARRAY, convertedtype=UTF8"`
	Complaint        bool     `parquet:"name=complaint, type=BOOLEAN"`
	ComplaintReason  string   `parquet:"name=complaint_reason, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// ParquetExporter writes engineered feature rows to a columnar file, either
// on local disk or to cloud storage when a factory is configured.
type ParquetExporter struct {
	cfg                *models.Config
	cloudWriterFactory cloudwriter.CloudWriterFactory
	cloudBucketName    string
}

func NewParquetExporter(cfg *models.Config) (*ParquetExporter, error) {
	p := &ParquetExporter{cfg: cfg}

	if cfg.OutputDestination != "local" {
		switch cfg.CloudStorage.Provider {
		case "s3":
			factory, err := cloudwriter.NewS3WriterFactory(cfg.CloudStorage.Region, cfg.CloudStorage.KeyPrefix)
			if err != nil {
				return nil, fmt.Errorf("failed to create cloud writer factory: %w", err)
			}
			p.cloudWriterFactory = factory
			p.cloudBucketName = cfg.CloudStorage.BucketName
		default:
			return nil, fmt.Errorf("unsupported cloud storage provider: %s", cfg.CloudStorage.Provider)
		}
	}
	return p, nil
}

// cloudParquetFile adapts a buffered CloudWriter to the parquet sink
// interface. Reads and seeks from the end are not supported; the writer
// only ever appends.
type cloudParquetFile struct {
	cloudWriter cloudwriter.CloudWriter
	offset      int64
}

func (c *cloudParquetFile) Open(name string) (source.ParquetFile, error)   { return c, nil }
func (c *cloudParquetFile) Create(name string) (source.ParquetFile, error) { return c, nil }

func (c *cloudParquetFile) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		c.offset = offset
	case io.SeekCurrent:
		c.offset += offset
	case io.SeekEnd:
		return 0, fmt.Errorf("seek from end not supported for cloud storage")
	}
	return c.offset, nil
}

func (c *cloudParquetFile) Read(p []byte) (n int, err error) {
	return 0, fmt.Errorf("read not supported for cloud storage")
}

func (c *cloudParquetFile) Write(p []byte) (n int, err error) {
	return c.cloudWriter.Write(p)
}

func (c *cloudParquetFile) Close() error {
	return c.cloudWriter.Close()
}

// ExportFeatureRows writes the rows as one parquet file named fileName
// under the configured output path (or bucket).
func (p *ParquetExporter) ExportFeatureRows(rows []models.FeatureRow, fileName string) error {
	fw, err := p.openSink(fileName)
	if err != nil {
		return err
	}

	pw, err := writer.NewParquetWriter(fw, new(featureRowParquet), 4)
	if err != nil {
		fw.Close()
		return fmt.Errorf("failed to create parquet writer: %w", err)
	}

	for i := range rows {
		if err := pw.Write(toParquetRow(&rows[i])); err != nil {
			fw.Close()
			return fmt.Errorf("failed to write feature row: %w", err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		fw.Close()
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return fw.Close()
}

func (p *ParquetExporter) openSink(fileName string) (source.ParquetFile, error) {
	if p.cloudWriterFactory != nil {
		objectPath := filepath.Join(p.cfg.OutputFolder, fileName)
		cw, err := p.cloudWriterFactory.NewWriter(p.cloudBucketName, objectPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create cloud file writer: %w", err)
		}
		return &cloudParquetFile{cloudWriter: cw}, nil
	}

	fullPath := filepath.Join(p.cfg.OutputPath, p.cfg.OutputFolder)
	if err := os.MkdirAll(fullPath, os.ModePerm); err != nil {
		return nil, err
	}
	fw, err := local.NewLocalFileWriter(filepath.Join(fullPath, fileName))
	if err != nil {
		return nil, fmt.Errorf("failed to create local file writer: %w", err)
	}
	return fw, nil
}

func toParquetRow(row *models.FeatureRow) *featureRowParquet {
	out := &featureRowParquet{
		OrderID:          row.OrderID,
		PlacedAt:         row.PlacedAt.UnixMilli(),
		OrderMode:        row.OrderMode,
		DeliveryArea:     row.DeliveryArea,
		DoughPrepTime:    row.DoughPrepTime,
		StylingTime:      row.StylingTime,
		OvenTime:         row.OvenTime,
		BoxingTime:       row.BoxingTime,
		DeliveryDuration: row.DeliveryDuration,
		OvenTemperature:  row.OvenTemperature,
		TotalPrepTime:    row.TotalPrepTime,
		TotalProcessTime: row.TotalProcessTime,
		OnTime:           row.OnTime,
		HourOfDay:        int32(row.HourOfDay),
		DayOfWeek:        int32(row.DayOfWeek),
		IsWeekend:        row.IsWeekend,
		IsPeakHour:       row.IsPeakHour,
		DelayCategory:    string(row.DelayCategory),
		Complaint:        row.Complaint,
		ComplaintReason:  row.ComplaintReason,
	}
	if row.OvenTempZone != nil {
		zone := string(*row.OvenTempZone)
		out.OvenTempZone = &zone
	}
	return out
}
