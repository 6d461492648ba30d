// Package energy approximates one node's battery reserve draining as it
// transmits, the same bottom-line quantity original_source/ns-3's
// WifiRadioEnergyModel reports through its RemainingEnergy and
// TotalEnergyConsumption traces, without carrying that package's full
// radio PHY model. The initial reserve is sized from
// rntp-config.cpp's ENEGERY_BATTERY_CAPACITY_IN_MAH / VOLTAGE_IN_V the
// same way sart-sim.cc's getSourceInitialEnegeryJ does; the per-byte
// draw is derived from rntp-config.cpp's TX_POWER_START_IN_DBM over one
// byte's airtime at a nominal link rate, since this module has no wifi
// PHY standard to read a real bit rate from.
package energy

import "math"

// DefaultBitRateBps stands in for the 802.11b rate ndnSIM fixes at
// construction; rntp-config.hpp never exposes it as a runtime knob.
const DefaultBitRateBps = 1e6

// Tracker accounts one node's battery reserve in joules as bytes are
// transmitted.
type Tracker struct {
	remainingJ float64
	perByteJ   float64
}

// NewTracker sizes the initial reserve from a battery capacity (mAh) and
// voltage (V) and the per-byte draw from a transmit power in dBm spent
// over one byte's airtime at bitRateBps (DefaultBitRateBps if <= 0).
func NewTracker(capacityMah, voltageV, txPowerDBm, bitRateBps float64) *Tracker {
	if bitRateBps <= 0 {
		bitRateBps = DefaultBitRateBps
	}
	capacityJ := voltageV * capacityMah * 0.001 * 3600
	txPowerW := math.Pow(10, txPowerDBm/10) / 1000
	secsPerByte := 8.0 / bitRateBps
	return &Tracker{remainingJ: capacityJ, perByteJ: txPowerW * secsPerByte}
}

// Consume deducts the cost of transmitting n bytes and reports the
// (consumed, remaining) joules. remaining floors at zero: once exhausted,
// further sends cost nothing more, matching BasicEnergySource's floor.
func (t *Tracker) Consume(n int) (consumedJ, remainingJ float64) {
	cost := t.perByteJ * float64(n)
	if cost > t.remainingJ {
		cost = t.remainingJ
	}
	t.remainingJ -= cost
	return cost, t.remainingJ
}

// Remaining reports the current reserve in joules.
func (t *Tracker) Remaining() float64 {
	return t.remainingJ
}
