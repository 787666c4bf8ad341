package mfsk

import (
	"context"
	"sort"

	"golang.org/x/sync/semaphore"
)

// activeRegion is the detected [start, end) sample range carrying signal.
type activeRegion struct {
	start, end int
}

// detectSignalBoundary implements spec §4.4 step 1: slide a 50ms window
// at 50% overlap, sum Goertzel power at all 16 tone frequencies per
// window, threshold at the 10th percentile plus 0.3 of the 10th-90th
// percentile spread, and extend the region one window before the first
// hit and two windows after the last.
//
// Window power is computed by a small bounded worker pool
// (golang.org/x/sync/semaphore), promoting the teacher's transitive
// golang.org/x/sync dependency to direct use the way the sync engine's
// loop lifecycle also does (see pkg/syncengine).
func detectSignalBoundary(samples []float32, cfg Config) activeRegion {
	windowSamples := cfg.SampleRateHz * 50 / 1000
	step := windowSamples / 2
	if step == 0 {
		step = 1
	}

	var starts []int
	for s := 0; s+windowSamples <= len(samples); s += step {
		starts = append(starts, s)
	}
	if len(starts) == 0 {
		return activeRegion{0, len(samples)}
	}

	energies := make([]float64, len(starts))
	sem := semaphore.NewWeighted(8)
	ctx := context.Background()
	done := make(chan int, len(starts))
	for idx, s := range starts {
		_ = sem.Acquire(ctx, 1)
		go func(idx, s int) {
			defer sem.Release(1)
			mags := toneMagnitudes(samples, s, windowSamples, cfg)
			sum := 0.0
			for _, m := range mags {
				sum += m
			}
			energies[idx] = sum
			done <- idx
		}(idx, s)
	}
	for range starts {
		<-done
	}

	p10 := percentile(energies, 0.10)
	p90 := percentile(energies, 0.90)
	threshold := p10 + 0.3*(p90-p10)

	first, last := -1, -1
	for i, e := range energies {
		if e >= threshold {
			if first == -1 {
				first = i
			}
			last = i
		}
	}
	if first == -1 {
		return activeRegion{0, len(samples)}
	}

	startWin := first - 1
	if startWin < 0 {
		startWin = 0
	}
	endWin := last + 2
	if endWin >= len(starts) {
		endWin = len(starts) - 1
	}

	start := starts[startWin]
	end := starts[endWin] + windowSamples
	if end > len(samples) {
		end = len(samples)
	}
	return activeRegion{start, end}
}

func percentile(values []float64, p float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if len(sorted) == 1 {
		return sorted[0]
	}
	idx := p * float64(len(sorted)-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= len(sorted) {
		return sorted[lo]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// acquireSync implements spec §4.4 step 2: within the first
// symbolDuration*(preambleLen+10) samples of the active region, search
// offsets at steps of samplesPerSymbol/4, scoring each by summing
// Goertzel power at the expected preamble tone for each of the 5
// preamble slots, and picking the offset with maximum score.
func acquireSync(samples []float32, region activeRegion, cfg Config) int {
	symbolSamples := cfg.samplesPerSymbol()
	toneSamples := cfg.samplesPerTone()
	searchLen := symbolSamples * (len(preambleSymbols) + 10)
	searchEnd := region.start + searchLen
	if searchEnd > len(samples) {
		searchEnd = len(samples)
	}
	step := symbolSamples / 4
	if step == 0 {
		step = 1
	}

	best, bestScore := region.start, -1.0
	for offset := region.start; offset+len(preambleSymbols)*symbolSamples <= searchEnd; offset += step {
		score := 0.0
		for slot, sym := range preambleSymbols {
			slotStart := offset + slot*symbolSamples
			score += goertzelPower(samples, slotStart, toneSamples, cfg.toneFrequency(sym), cfg.SampleRateHz)
		}
		if score > bestScore {
			bestScore = score
			best = offset
		}
	}
	return best
}

// sliceSymbols implements spec §4.4 step 3: from syncOffset, at each
// symbol boundary compute Goertzel magnitudes at all tone frequencies
// over samplesPerTone samples and emit the tone index with the largest
// magnitude.
func sliceSymbols(samples []float32, syncOffset int, cfg Config) []int {
	symbolSamples := cfg.samplesPerSymbol()
	toneSamples := cfg.samplesPerTone()

	var symbols []int
	for offset := syncOffset; offset+toneSamples <= len(samples); offset += symbolSamples {
		mags := toneMagnitudes(samples, offset, toneSamples, cfg)
		symbols = append(symbols, argmax(mags))
	}
	return symbols
}
