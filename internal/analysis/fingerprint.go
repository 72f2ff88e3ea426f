package analysis

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"sort"

	"github.com/pizzaops/opsight/internal/models"
)

// Fingerprint identifies a dataset by content. Two uploads with the same
// orders in any ordering produce the same fingerprint, so cached analysis
// survives re-uploads of identical data.
type Fingerprint string

// FingerprintOrders hashes the canonical byte form of every order. Orders
// are sorted by ID then timestamp before hashing so row order is irrelevant.
func FingerprintOrders(orders []models.OrderRecord) Fingerprint {
	idx := make([]int, len(orders))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool {
		oa, ob := orders[idx[a]], orders[idx[b]]
		if oa.OrderID != ob.OrderID {
			return oa.OrderID < ob.OrderID
		}
		return oa.PlacedAt.Before(ob.PlacedAt)
	})

	h := sha256.New()
	var buf [8]byte
	writeF := func(v float64) {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		h.Write(buf[:])
	}
	writeS := func(s string) {
		binary.LittleEndian.PutUint64(buf[:], uint64(len(s)))
		h.Write(buf[:])
		h.Write([]byte(s))
	}
	for _, i := range idx {
		o := orders[i]
		writeS(o.OrderID)
		binary.LittleEndian.PutUint64(buf[:], uint64(o.PlacedAt.UTC().UnixNano()))
		h.Write(buf[:])
		writeS(o.OrderMode)
		writeS(o.PizzaSize)
		writeS(o.DeliveryArea)
		writeF(o.DoughPrepTime)
		writeF(o.StylingTime)
		writeF(o.OvenTime)
		writeF(o.BoxingTime)
		writeF(o.DeliveryDuration)
		if o.OvenTemperature != nil {
			writeF(*o.OvenTemperature)
		} else {
			writeS("∅")
		}
		writeS(o.DoughPrepStaff)
		writeS(o.Stylist)
		writeS(o.OvenOperator)
		writeS(o.Boxer)
		writeS(o.DeliveryDriver)
		if o.Complaint {
			h.Write([]byte{1})
		} else {
			h.Write([]byte{0})
		}
		writeS(o.ComplaintReason)
	}
	return Fingerprint(hex.EncodeToString(h.Sum(nil)))
}

// Short returns a log-friendly prefix of the fingerprint.
func (f Fingerprint) Short() string {
	if len(f) <= 12 {
		return string(f)
	}
	return string(f[:12])
}
