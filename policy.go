package ogi

import "time"

type quorumKind int

const (
	quorumFraction quorumKind = iota
	quorumBestEffort
)

// Quorum is the pure, immutable rule deciding how many successful results
// are "enough" to stop waiting. The zero value is Fraction(0), which is met
// by any non-empty batch.
type Quorum struct {
	kind     quorumKind
	fraction float64
}

// QuorumFraction is met when successes/total >= x.
func QuorumFraction(x float64) Quorum {
	return Quorum{kind: quorumFraction, fraction: x}
}

// QuorumBestEffort stops waiting as soon as no progress is being made,
// regardless of success ratio. IsMet never reports it satisfied by counts;
// the collector exits when a polling window elapses with no arrival.
func QuorumBestEffort() Quorum {
	return Quorum{kind: quorumBestEffort}
}

// IsBestEffort reports whether this quorum stops on stalled progress.
func (q Quorum) IsBestEffort() bool { return q.kind == quorumBestEffort }

// Fraction returns the configured success ratio (0 for best-effort quorums).
func (q Quorum) Fraction() float64 { return q.fraction }

// IsMet is a referentially transparent check of the stopping rule.
// An empty batch (total == 0) is vacuously met so that collecting over
// nothing never stalls — the integer comparison sidesteps 0/0 entirely.
func (q Quorum) IsMet(successes, total int) bool {
	if total == 0 {
		return true
	}
	if q.kind == quorumBestEffort {
		return false
	}
	return float64(successes)/float64(total) >= q.fraction
}

// TimeoutPolicy bounds a collection call. Total caps the whole call;
// PerQuery is the maximum time the collector waits for any single next
// arrival before re-checking the deadline and quorum — a polling
// granularity, not a per-item SLA.
type TimeoutPolicy struct {
	Total    time.Duration
	PerQuery time.Duration
}
