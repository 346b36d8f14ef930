package testsupport

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextSequence_Increments(t *testing.T) {
	seq1 := NextSequence()
	seq2 := NextSequence()
	assert.Equal(t, seq1+1, seq2)
}

func TestUniquePatientID_Concurrent(t *testing.T) {
	var mu sync.Mutex
	seen := make(map[string]bool)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				id := UniquePatientID()
				mu.Lock()
				assert.False(t, seen[id], "duplicate id %s", id)
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 1000)
}

func TestUniqueVersion_Layout(t *testing.T) {
	assert.Len(t, UniqueVersion(), len("20060102_150405.000"))
}

func TestUniquePatientID_Shape(t *testing.T) {
	id := UniquePatientID()
	assert.Len(t, id, 16)
	assert.Equal(t, "TEST", id[:4])
}

func TestUniqueVersion_SortsAfterReal(t *testing.T) {
	assert.Greater(t, UniqueVersion(), "20991231_235959.999")
}
