package analysis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pizzaops/opsight/internal/factories"
	"github.com/pizzaops/opsight/internal/models"
	"github.com/smartystreets/goconvey/convey"
)

func sampleOrders(count int, seed int64) []models.OrderRecord {
	cfg := models.DefaultConfig()
	factory := factories.NewOrderFactory(cfg, factories.DefaultScenario(), seed)
	end := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	return factory.CreateHistory(count, 14, end)
}

func TestFingerprintOrders(t *testing.T) {
	convey.Convey("Given the same orders in two different orderings", t, func() {
		orders := sampleOrders(50, 3)
		shuffled := make([]models.OrderRecord, len(orders))
		for i, o := range orders {
			shuffled[len(orders)-1-i] = o
		}

		convey.Convey("Then the fingerprint is identical", func() {
			convey.So(FingerprintOrders(shuffled), convey.ShouldEqual, FingerprintOrders(orders))
		})
	})

	convey.Convey("Given two datasets differing in one field", t, func() {
		a := sampleOrders(50, 3)
		b := make([]models.OrderRecord, len(a))
		copy(b, a)
		b[17].DeliveryDuration += 0.5

		convey.Convey("Then the fingerprints diverge", func() {
			convey.So(FingerprintOrders(b), convey.ShouldNotEqual, FingerprintOrders(a))
		})
	})

	convey.Convey("Given a missing versus present oven temperature", t, func() {
		a := sampleOrders(10, 3)
		b := make([]models.OrderRecord, len(a))
		copy(b, a)
		b[0].OvenTemperature = nil
		temp := 260.0
		a[0].OvenTemperature = &temp

		convey.So(FingerprintOrders(b), convey.ShouldNotEqual, FingerprintOrders(a))
	})

	convey.Convey("Short truncates to a log-friendly prefix", t, func() {
		fp := FingerprintOrders(sampleOrders(5, 3))
		convey.So(len(fp.Short()), convey.ShouldEqual, 12)
		convey.So(string(fp), convey.ShouldStartWith, fp.Short())
	})
}

func TestCache(t *testing.T) {
	convey.Convey("Given a cache with a controllable clock", t, func() {
		clock := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
		c := NewCache(15 * time.Minute)
		c.now = func() time.Time { return clock }

		fp := Fingerprint("abc123")
		c.Put(fp, "bottlenecks", "", "stage-findings")
		c.Put(fp, "forecast", "h=24", "points")
		c.Put(Fingerprint("other"), "bottlenecks", "", "unrelated")

		convey.Convey("Then fresh entries are served", func() {
			v, ok := c.Get(fp, "bottlenecks", "")
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(v, convey.ShouldEqual, "stage-findings")
		})

		convey.Convey("Then params distinguish entries under one operation", func() {
			_, ok := c.Get(fp, "forecast", "h=48")
			convey.So(ok, convey.ShouldBeFalse)
		})

		convey.Convey("Then entries expire after the TTL", func() {
			clock = clock.Add(16 * time.Minute)
			_, ok := c.Get(fp, "bottlenecks", "")
			convey.So(ok, convey.ShouldBeFalse)
			convey.So(c.Len(), convey.ShouldEqual, 2)
		})

		convey.Convey("Then invalidating a fingerprint spares other datasets", func() {
			c.Invalidate(fp)
			_, ok := c.Get(fp, "forecast", "h=24")
			convey.So(ok, convey.ShouldBeFalse)
			_, ok = c.Get(Fingerprint("other"), "bottlenecks", "")
			convey.So(ok, convey.ShouldBeTrue)
		})
	})
}

func TestCoordinator_SetDataset(t *testing.T) {
	cfg := models.DefaultConfig()

	convey.Convey("Given a coordinator with an active dataset", t, func() {
		coord := NewCoordinator(cfg)
		defer coord.Close()

		orders := sampleOrders(300, 9)
		fp, err := coord.SetDataset(orders)
		convey.So(err, convey.ShouldBeNil)
		convey.So(coord.Fingerprint(), convey.ShouldEqual, fp)
		convey.So(len(coord.Rows()), convey.ShouldEqual, len(orders))

		convey.Convey("When the identical data is uploaded again", func() {
			again, err := coord.SetDataset(orders)
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then it is a no-op", func() {
				convey.So(again, convey.ShouldEqual, fp)
			})
		})

		convey.Convey("When different data replaces it", func() {
			convey.So(coord.TrainForecastEnsemble(context.Background()), convey.ShouldBeNil)
			ens := coord.ForecastEnsemble()
			convey.So(ens, convey.ShouldNotBeNil)

			next, err := coord.SetDataset(sampleOrders(300, 10))
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then the fingerprint changes and old models go stale", func() {
				convey.So(next, convey.ShouldNotEqual, fp)
				convey.So(ens.State().String(), convey.ShouldEqual, "stale")
			})
		})
	})

	convey.Convey("Given a coordinator with no dataset", t, func() {
		coord := NewCoordinator(cfg)
		defer coord.Close()

		var insufficient *models.InsufficientDataError

		_, err := coord.Bottlenecks()
		convey.So(err, convey.ShouldNotBeNil)
		convey.So(errors.As(err, &insufficient), convey.ShouldBeTrue)

		err = coord.TrainForecastEnsemble(context.Background())
		convey.So(err, convey.ShouldNotBeNil)
	})
}

func TestCoordinator_Training(t *testing.T) {
	cfg := models.DefaultConfig()

	convey.Convey("Given a coordinator with three weeks of orders", t, func() {
		coord := NewCoordinator(cfg)
		defer coord.Close()

		_, err := coord.SetDataset(sampleOrders(2500, 21))
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("When many callers request the same fit concurrently", func() {
			var wg sync.WaitGroup
			errs := make([]error, 8)
			for i := 0; i < 8; i++ {
				i := i
				wg.Add(1)
				go func() {
					defer wg.Done()
					errs[i] = coord.TrainForecastEnsemble(context.Background())
				}()
			}
			wg.Wait()

			convey.Convey("Then every caller sees the shared result", func() {
				for _, err := range errs {
					convey.So(err, convey.ShouldBeNil)
				}
				convey.So(coord.ForecastEnsemble(), convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When both model families train together", func() {
			convey.So(coord.TrainAll(context.Background()), convey.ShouldBeNil)
			convey.So(coord.ComplaintModel(), convey.ShouldNotBeNil)
			convey.So(coord.ForecastEnsemble(), convey.ShouldNotBeNil)
		})

		convey.Convey("When analyses repeat on the same dataset", func() {
			first, err := coord.Bottlenecks()
			convey.So(err, convey.ShouldBeNil)
			second, err := coord.Bottlenecks()
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then the cached result is returned", func() {
				convey.So(len(second), convey.ShouldEqual, len(first))
				convey.So(coord.cache.Len(), convey.ShouldBeGreaterThanOrEqualTo, 1)
			})
		})

		convey.Convey("When a forecast is requested before training", func() {
			_, err := coord.Forecast(24)
			var training *models.ModelTrainingError
			convey.So(errors.As(err, &training), convey.ShouldBeTrue)
		})

		convey.Convey("When a forecast is requested after training", func() {
			convey.So(coord.TrainForecastEnsemble(context.Background()), convey.ShouldBeNil)
			points, err := coord.Forecast(24)
			convey.So(err, convey.ShouldBeNil)
			convey.So(len(points), convey.ShouldEqual, 24)
		})
	})
}
