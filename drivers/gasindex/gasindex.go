// Package gasindex turns SGP4x raw ticks into the VOC and NOx indices
// published by Sensirion in their Gas Index Algorithm (v3.2). The VOC index
// is 1..500 around a learned baseline of 100, the NOx index is 1..500 around
// a baseline of 1.
package gasindex

import "math"

// Kind selects the VOC or NOx tuning.
type Kind int

const (
	VOC Kind = iota
	NOx
)

func (k Kind) String() string {
	if k == NOx {
		return "nox"
	}
	return "voc"
}

const (
	initialBlackout         = 45.0
	indexGain               = 230.0
	srawStdInitial          = 50.0
	srawStdBonusVOC         = 220.0
	srawStdNOx              = 2000.0
	tauMeanHours            = 12.0
	tauVarianceHours        = 12.0
	tauInitialMeanVOC       = 20.0
	tauInitialMeanNOx       = 1200.0
	initDurationMeanVOC     = 3600 * 0.75
	initDurationMeanNOx     = 3600 * 4.75
	initTransitionMean      = 0.01
	tauInitialVariance      = 2500.0
	initDurationVarianceVOC = 3600 * 1.45
	initDurationVarianceNOx = 3600 * 5.70
	initTransitionVariance  = 0.01
	gatingThresholdVOC      = 340.0
	gatingThresholdNOx      = 30.0
	gatingThresholdInitial  = 510.0
	gatingThresholdTrans    = 0.09
	gatingMaxMinutesVOC     = 60 * 3.0
	gatingMaxMinutesNOx     = 60 * 12.0
	gatingMaxRatio          = 0.3
	sigmoidL                = 500.0
	sigmoidKVOC             = -0.0065
	sigmoidX0VOC            = 213.0
	sigmoidKNOx             = -0.0101
	sigmoidX0NOx            = 614.0
	indexOffsetVOC          = 100.0
	indexOffsetNOx          = 1.0
	lpTauFast               = 20.0
	lpTauSlow               = 500.0
	lpAlpha                 = -0.2
	srawMinimumVOC          = 20000
	srawMinimumNOx          = 10000
	gammaScaling            = 64.0
	additionalGammaMean     = 8.0
	fix16Max                = 32767.0
)

// Algorithm is the state of one index. It is not safe for concurrent use.
type Algorithm struct {
	kind     Kind
	interval float64 // seconds between samples

	indexOffset     float64
	srawMinimum     int32
	gatingMaxMin    float64
	initDurMean     float64
	initDurVariance float64
	gatingThreshold float64

	uptime float64
	sraw   float64
	index  float64

	mve     meanVariance
	moxStd  float64
	moxMean float64
	lp      lowpass
}

// New returns an algorithm fed one sample every interval seconds.
// Sensirion tune it for 1 s, it also tracks well at longer intervals.
func New(kind Kind, interval float64) *Algorithm {
	if interval <= 0 {
		interval = 1
	}
	a := &Algorithm{kind: kind, interval: interval}
	if kind == NOx {
		a.indexOffset = indexOffsetNOx
		a.srawMinimum = srawMinimumNOx
		a.gatingMaxMin = gatingMaxMinutesNOx
		a.initDurMean = initDurationMeanNOx
		a.initDurVariance = initDurationVarianceNOx
		a.gatingThreshold = gatingThresholdNOx
	} else {
		a.indexOffset = indexOffsetVOC
		a.srawMinimum = srawMinimumVOC
		a.gatingMaxMin = gatingMaxMinutesVOC
		a.initDurMean = initDurationMeanVOC
		a.initDurVariance = initDurationVarianceVOC
		a.gatingThreshold = gatingThresholdVOC
	}
	a.Reset()
	return a
}

func (a *Algorithm) Kind() Kind { return a.kind }

// Reset forgets the learned baseline, as after a power cycle of the sensor.
func (a *Algorithm) Reset() {
	a.uptime = 0
	a.sraw = 0
	a.index = 0
	a.mve.reset(a)
	a.moxStd, a.moxMean = a.mve.std, a.mve.mean+a.mve.offset
	a.lp.reset(a.interval)
}

// Ready reports whether the blackout after start has passed. Process
// returns 0 until then.
func (a *Algorithm) Ready() bool { return a.uptime > initialBlackout }

// Process feeds one raw tick value and returns the current index.
func (a *Algorithm) Process(sraw int32) int32 {
	if a.uptime <= initialBlackout {
		a.uptime += a.interval
		return int32(a.index + 0.5)
	}
	if sraw > 0 && sraw < 65000 {
		if sraw < a.srawMinimum+1 {
			sraw = a.srawMinimum + 1
		} else if sraw > a.srawMinimum+32767 {
			sraw = a.srawMinimum + 32767
		}
		a.sraw = float64(sraw - a.srawMinimum)
	}
	if a.kind == VOC || a.mve.initialized {
		a.index = a.scaled(a.mox(a.sraw))
	} else {
		a.index = a.indexOffset
	}
	a.index = a.lp.process(a.index)
	if a.index < 0.5 {
		a.index = 0.5
	}
	if a.sraw > 0 {
		a.mve.process(a, a.sraw)
		a.moxStd, a.moxMean = a.mve.std, a.mve.mean+a.mve.offset
	}
	return int32(a.index + 0.5)
}

func (a *Algorithm) mox(sraw float64) float64 {
	if a.kind == NOx {
		return (sraw - a.moxMean) / srawStdNOx * indexGain
	}
	return (sraw - a.moxMean) / -(a.moxStd + srawStdBonusVOC) * indexGain
}

// scaled maps the mox output onto 0..500 around the index offset.
func (a *Algorithm) scaled(sample float64) float64 {
	k, x0, def := sigmoidKVOC, sigmoidX0VOC, indexOffsetVOC
	if a.kind == NOx {
		k, x0, def = sigmoidKNOx, sigmoidX0NOx, indexOffsetNOx
	}
	x := k * (sample - x0)
	switch {
	case x < -50:
		return sigmoidL
	case x > 50:
		return 0
	case sample >= 0:
		var shift float64
		if def == 1 {
			shift = (500.0 / 499.0) * (1 - a.indexOffset)
		} else {
			shift = (sigmoidL - 5*a.indexOffset) / 4
		}
		return (sigmoidL+shift)/(1+math.Exp(x)) - shift
	default:
		return a.indexOffset / def * (sigmoidL / (1 + math.Exp(x)))
	}
}

func sigmoid(sample, x0, k float64) float64 {
	x := k * (sample - x0)
	switch {
	case x < -50:
		return 1
	case x > 50:
		return 0
	default:
		return 1 / (1 + math.Exp(x))
	}
}

// meanVariance tracks the baseline of the raw signal.
type meanVariance struct {
	initialized bool
	mean        float64
	offset      float64
	std         float64

	gammaMean            float64
	gammaVariance        float64
	gammaInitialMean     float64
	gammaInitialVariance float64
	curGammaMean         float64
	curGammaVariance     float64
	uptimeGamma          float64
	uptimeGating         float64
	gatingMinutes        float64
}

func (m *meanVariance) reset(a *Algorithm) {
	hours := a.interval / 3600
	tauInitialMean := tauInitialMeanVOC
	if a.kind == NOx {
		tauInitialMean = tauInitialMeanNOx
	}
	*m = meanVariance{
		std:                  srawStdInitial,
		gammaMean:            additionalGammaMean * gammaScaling * hours / (tauMeanHours + hours),
		gammaVariance:        gammaScaling * hours / (tauVarianceHours + hours),
		gammaInitialMean:     additionalGammaMean * gammaScaling * a.interval / (tauInitialMean + a.interval),
		gammaInitialVariance: gammaScaling * a.interval / (tauInitialVariance + a.interval),
	}
}

func (m *meanVariance) gamma(a *Algorithm) {
	limit := fix16Max - a.interval
	if m.uptimeGamma < limit {
		m.uptimeGamma += a.interval
	}
	if m.uptimeGating < limit {
		m.uptimeGating += a.interval
	}

	sigGammaMean := sigmoid(m.uptimeGamma, a.initDurMean, initTransitionMean)
	gammaMean := m.gammaMean + (m.gammaInitialMean-m.gammaMean)*sigGammaMean
	thresholdMean := a.gatingThreshold +
		(gatingThresholdInitial-a.gatingThreshold)*sigmoid(m.uptimeGating, a.initDurMean, initTransitionMean)
	sigGatingMean := sigmoid(a.index, thresholdMean, gatingThresholdTrans)
	m.curGammaMean = sigGatingMean * gammaMean

	sigGammaVariance := sigmoid(m.uptimeGamma, a.initDurVariance, initTransitionVariance)
	gammaVariance := m.gammaVariance +
		(m.gammaInitialVariance-m.gammaVariance)*(sigGammaVariance-sigGammaMean)
	thresholdVariance := a.gatingThreshold +
		(gatingThresholdInitial-a.gatingThreshold)*sigmoid(m.uptimeGating, a.initDurVariance, initTransitionVariance)
	sigGatingVariance := sigmoid(a.index, thresholdVariance, gatingThresholdTrans)
	m.curGammaVariance = sigGatingVariance * gammaVariance

	// a long run of high index readings stops baseline learning, then restarts it
	m.gatingMinutes += a.interval / 60 * ((1-sigGatingMean)*(1+gatingMaxRatio) - gatingMaxRatio)
	if m.gatingMinutes < 0 {
		m.gatingMinutes = 0
	}
	if m.gatingMinutes > a.gatingMaxMin {
		m.uptimeGating = 0
	}
}

func (m *meanVariance) process(a *Algorithm, sraw float64) {
	if !m.initialized {
		m.initialized = true
		m.offset = sraw
		m.mean = 0
		return
	}
	if m.mean >= 100 || m.mean <= -100 {
		m.offset += m.mean
		m.mean = 0
	}
	sraw -= m.offset
	m.gamma(a)
	delta := (sraw - m.mean) / gammaScaling
	c := m.std + math.Abs(delta)
	scale := 1.0
	if c > 1440 {
		scale = (c / 1440) * (c / 1440)
	}
	m.std = math.Sqrt(scale*(gammaScaling-m.curGammaVariance)) *
		math.Sqrt(m.std*(m.std/(gammaScaling*scale))+(m.curGammaVariance*delta/scale)*delta)
	m.mean += m.curGammaMean * delta / additionalGammaMean
}

// lowpass smooths the index, fast on large steps and slow otherwise.
type lowpass struct {
	interval    float64
	a1, a2      float64
	x1, x2, x3  float64
	initialized bool
}

func (l *lowpass) reset(interval float64) {
	*l = lowpass{
		interval: interval,
		a1:       interval / (lpTauFast + interval),
		a2:       interval / (lpTauSlow + interval),
	}
}

func (l *lowpass) process(sample float64) float64 {
	if !l.initialized {
		l.x1, l.x2, l.x3 = sample, sample, sample
		l.initialized = true
	}
	l.x1 = (1-l.a1)*l.x1 + l.a1*sample
	l.x2 = (1-l.a2)*l.x2 + l.a2*sample
	f1 := math.Exp(lpAlpha * math.Abs(l.x1-l.x2))
	tau := (lpTauSlow-lpTauFast)*f1 + lpTauFast
	a3 := l.interval / (l.interval + tau)
	l.x3 = (1-a3)*l.x3 + a3*sample
	return l.x3
}
