package indicator

import (
	"math"

	"github.com/mytechsonamy/crypto-stock-platform/internal/model"
)

// BollingerResult is the three-band output (spec 4.5: "Bollinger(20,2):
// middle = SMA20; upper/lower = middle +/- 2*stddev(20)").
type BollingerResult struct {
	Upper, Middle, Lower float64
	Ready                bool
}

// Bollinger computes Bollinger Bands from a rolling window of closes.
type Bollinger struct {
	period   int
	numStdev float64
	buf      []float64
	idx      int
	count    int
}

func NewBollinger(period int, numStdev float64) *Bollinger {
	return &Bollinger{period: period, numStdev: numStdev, buf: make([]float64, period)}
}

func (b *Bollinger) Update(candle model.Candle) {
	b.buf[b.idx] = candle.Close
	b.idx = (b.idx + 1) % b.period
	b.count++
}

func (b *Bollinger) Ready() bool { return b.count >= b.period }

func (b *Bollinger) Result() BollingerResult {
	if !b.Ready() {
		return BollingerResult{}
	}
	var sum float64
	for _, v := range b.buf {
		sum += v
	}
	mean := sum / float64(b.period)

	var sqSum float64
	for _, v := range b.buf {
		d := v - mean
		sqSum += d * d
	}
	stdev := math.Sqrt(sqSum / float64(b.period))

	return BollingerResult{
		Upper:  mean + b.numStdev*stdev,
		Middle: mean,
		Lower:  mean - b.numStdev*stdev,
		Ready:  true,
	}
}
