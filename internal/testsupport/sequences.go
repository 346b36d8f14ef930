package testsupport

import (
	"fmt"
	"sync/atomic"
	"time"
)

// seeded from the clock so reruns against a shared database do not collide
var idCounter atomic.Uint64

func init() {
	idCounter.Store(uint64(time.Now().UnixNano() % 1_000_000))
}

// NextSequence returns the next process-wide test sequence number
func NextSequence() uint64 {
	return idCounter.Add(1)
}

// UniquePatientID returns a 16-character id shaped like a DE-SynPUF
// beneficiary id, prefixed so fixtures are easy to spot and purge
func UniquePatientID() string {
	return fmt.Sprintf("TEST%012X", NextSequence())
}

// UniqueVersion returns a model version in the far future so it sorts ahead
// of every real artifact in the registry
func UniqueVersion() string {
	return fmt.Sprintf("99991231_%06d.000", NextSequence()%1_000_000)
}
