package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/pizzaops/opsight/internal/models"
	"github.com/smartystreets/goconvey/convey"
)

// stubRows replays prepared records the way a pgx result set streams them.
// When err is set it surfaces after the last row, like a connection that
// drops mid-query.
type stubRows struct {
	orders []models.OrderRecord
	idx    int
	err    error
}

func (s *stubRows) Next() bool {
	return s.idx < len(s.orders)
}

func (s *stubRows) Err() error {
	return s.err
}

func (s *stubRows) Scan(dest ...any) error {
	o := s.orders[s.idx]
	s.idx++
	*dest[0].(*string) = o.OrderID
	*dest[1].(*time.Time) = o.PlacedAt
	*dest[2].(*string) = o.OrderMode
	*dest[3].(*string) = o.PizzaSize
	*dest[4].(*string) = o.DeliveryArea
	*dest[5].(*float64) = o.DoughPrepTime
	*dest[6].(*float64) = o.StylingTime
	*dest[7].(*float64) = o.OvenTime
	*dest[8].(*float64) = o.BoxingTime
	*dest[9].(*float64) = o.DeliveryDuration
	*dest[10].(**float64) = o.OvenTemperature
	*dest[11].(*string) = o.OrderTaker
	*dest[12].(*string) = o.DoughPrepStaff
	*dest[13].(*string) = o.Stylist
	*dest[14].(*string) = o.OvenOperator
	*dest[15].(*string) = o.Boxer
	*dest[16].(*string) = o.DeliveryDriver
	*dest[17].(*bool) = o.Complaint
	*dest[18].(*string) = o.ComplaintReason
	return nil
}

func TestScanOrders(t *testing.T) {
	convey.Convey("Given a result set from the orders table", t, func() {
		temp := 268.5
		orders := []models.OrderRecord{
			{
				OrderID:          "P-1001",
				PlacedAt:         time.Date(2026, 4, 1, 12, 15, 0, 0, time.UTC),
				OrderMode:        "app",
				PizzaSize:        "L",
				DeliveryArea:     "B",
				DoughPrepTime:    5.5,
				StylingTime:      4,
				OvenTime:         10.2,
				BoxingTime:       2.1,
				DeliveryDuration: 18,
				OvenTemperature:  &temp,
				DeliveryDriver:   "Noor",
			},
			{
				OrderID:          "P-1002",
				PlacedAt:         time.Date(2026, 4, 1, 19, 40, 0, 0, time.UTC),
				OrderMode:        "phone",
				DeliveryArea:     "E",
				DoughPrepTime:    7,
				StylingTime:      6,
				OvenTime:         13,
				BoxingTime:       3,
				DeliveryDuration: 41,
				DeliveryDriver:   "Ivo",
				Complaint:        true,
				ComplaintReason:  "Late delivery",
			},
		}

		convey.Convey("A clean stream scans every record", func() {
			got, err := scanOrders(&stubRows{orders: orders})

			convey.So(err, convey.ShouldBeNil)
			convey.So(got, convey.ShouldHaveLength, 2)
			convey.So(got[0].OrderID, convey.ShouldEqual, "P-1001")
			convey.So(got[0].OvenTemperature, convey.ShouldNotBeNil)
			convey.So(*got[0].OvenTemperature, convey.ShouldEqual, 268.5)
			convey.So(got[1].OvenTemperature, convey.ShouldBeNil)
			convey.So(got[1].Complaint, convey.ShouldBeTrue)
			convey.So(got[1].ComplaintReason, convey.ShouldEqual, "Late delivery")
		})

		convey.Convey("A stream that fails mid-query returns the error, not a truncated set", func() {
			dropped := errors.New("unexpected EOF")
			got, err := scanOrders(&stubRows{orders: orders[:1], err: dropped})

			convey.So(err, convey.ShouldNotBeNil)
			convey.So(errors.Is(err, dropped), convey.ShouldBeTrue)
			convey.So(got, convey.ShouldBeNil)
		})
	})
}
