package zone

// AutoTuner implements the relay-feedback method (Åström-Hägglund) for
// discovering PID gains from observed oscillation, the same family of
// technique the original firmware delegated to a PID_ATune library. No
// example repo in the corpus ships a relay auto-tuner, so this one is
// hand-rolled; its session lifecycle (start, feed samples once per tick,
// poll for completion, harvest gains) mirrors that library's shape.
//
// The relay drives the output between a high and low step whenever the
// input crosses the running average by more than the noise band, and
// records the resulting oscillation's peak-to-peak amplitude and period.
// Ultimate gain and period are derived from a handful of stable peaks,
// then converted to Ziegler-Nichols PID terms.
type AutoTuner struct {
	noiseBand   float64
	outputStep  float64
	lookback    int // sample count used to seed the initial average
	minPeaks    int

	samples     int
	avg         float64
	peakHigh    bool // true while searching for a high peak, false for a low peak
	lastPeak    float64
	haveLast    bool
	peakSamples []int
	peakValues  []float64
	tick        int

	output float64
	done   bool
	kp, ki, kd float64
}

// NewAutoTuner mirrors the original's SetNoiseBand(2)/SetOutputStep(255)/
// SetLookbackSec(12) configuration; lookbackSamples is 12 because tuning
// runs at the same 1 Hz cadence as Tick.
func NewAutoTuner(noiseBand, outputStep float64, lookbackSamples int) *AutoTuner {
	return &AutoTuner{
		noiseBand:  noiseBand,
		outputStep: outputStep,
		lookback:   lookbackSamples,
		minPeaks:   5,
		peakHigh:   true,
	}
}

// Update feeds one input sample and returns the next
// output the relay wants driven, plus whether tuning has converged. Once
// done is true, Kp/Ki/Kd hold the discovered gains and the caller should
// stop calling Update.
func (a *AutoTuner) Update(input float64) (output float64, done bool) {
	if a.done {
		return a.output, true
	}

	a.tick++
	if a.samples < a.lookback {
		a.samples++
		a.avg += (input - a.avg) / float64(a.samples)
		a.output = a.outputStep / 2
		return a.output, false
	}
	a.avg += (input - a.avg) * 0.05

	above := input > a.avg+a.noiseBand
	below := input < a.avg-a.noiseBand

	if a.peakHigh && above {
		a.output = 0
		a.recordPeak(input)
		a.peakHigh = false
	} else if !a.peakHigh && below {
		a.output = a.outputStep
		a.recordPeak(input)
		a.peakHigh = true
	}

	if len(a.peakValues) >= a.minPeaks {
		a.finish()
		return a.output, true
	}
	return a.output, false
}

func (a *AutoTuner) recordPeak(v float64) {
	a.peakSamples = append(a.peakSamples, a.tick)
	a.peakValues = append(a.peakValues, v)
}

// finish derives ultimate gain/period from the last few recorded peaks
// and applies the classic Ziegler-Nichols "PID" rule.
func (a *AutoTuner) finish() {
	n := len(a.peakValues)
	var amp, periodSum float64
	periods := 0
	for i := n - a.minPeaks + 1; i < n; i++ {
		amp += absf(a.peakValues[i] - a.peakValues[i-1])
		if i >= 2 {
			periodSum += float64(a.peakSamples[i] - a.peakSamples[i-2])
			periods++
		}
	}
	amp /= float64(a.minPeaks - 1)
	if amp <= 0 {
		amp = a.noiseBand
	}
	pu := 1.0
	if periods > 0 {
		pu = periodSum / float64(periods)
	}
	ku := (4 * a.outputStep) / (3.14159265 * amp)

	a.kp = 0.6 * ku
	a.ki = 1.2 * ku / pu
	a.kd = 0.075 * ku * pu
	a.done = true
}

func (a *AutoTuner) Kp() float64 { return a.kp }
func (a *AutoTuner) Ki() float64 { return a.ki }
func (a *AutoTuner) Kd() float64 { return a.kd }

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
