package services_test

import (
	"sync"
	"testing"

	"parcel-service/services"

	"github.com/stretchr/testify/assert"
)

func TestGenerateTrackingID_Format(t *testing.T) {
	for i := 0; i < 100; i++ {
		id := services.GenerateTrackingID()
		assert.Regexp(t, trackingPattern, id)
	}
}

func TestGenerateTrackingID_NoRepeats(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := services.GenerateTrackingID()
		assert.False(t, seen[id], "generated duplicate tracking id %s", id)
		seen[id] = true
	}
}

func TestGenerateTrackingID_Concurrent(t *testing.T) {
	const workers = 8
	const perWorker = 100

	var mu sync.Mutex
	ids := make([]string, 0, workers*perWorker)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]string, 0, perWorker)
			for j := 0; j < perWorker; j++ {
				local = append(local, services.GenerateTrackingID())
			}
			mu.Lock()
			ids = append(ids, local...)
			mu.Unlock()
		}()
	}
	wg.Wait()

	for _, id := range ids {
		assert.Regexp(t, trackingPattern, id)
	}
}
