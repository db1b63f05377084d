package slots

import (
	"iter"
	"time"

	"salonbook/internal/models"
)

// DefaultGranularity is the step between candidate start times, in minutes.
const DefaultGranularity = 15

// Generator enumerates candidate slots inside free blocks.
type Generator struct {
	granularity int
}

// NewGenerator creates a generator stepping by granularity minutes.
// Non-positive values fall back to DefaultGranularity.
func NewGenerator(granularity int) *Generator {
	if granularity <= 0 {
		granularity = DefaultGranularity
	}
	return &Generator{granularity: granularity}
}

// Granularity returns the step in minutes.
func (g *Generator) Granularity() int {
	return g.granularity
}

// Slots yields every slot of the given duration that starts on a granularity
// step from block.Start and ends no later than block.End. The sequence is
// recomputed from the block on each iteration.
func (g *Generator) Slots(resourceID int64, date time.Time, block models.FreeBlock, duration int) iter.Seq[models.CandidateSlot] {
	return func(yield func(models.CandidateSlot) bool) {
		if duration <= 0 || duration > block.End-block.Start {
			return
		}
		for start := block.Start; start+duration <= block.End; start += g.granularity {
			slot := models.CandidateSlot{
				ResourceID: resourceID,
				Date:       date,
				Start:      start,
				End:        start + duration,
				Duration:   duration,
			}
			if !yield(slot) {
				return
			}
		}
	}
}

// First returns the earliest slot of the given duration in block.
func (g *Generator) First(resourceID int64, date time.Time, block models.FreeBlock, duration int) (models.CandidateSlot, bool) {
	for slot := range g.Slots(resourceID, date, block, duration) {
		return slot, true
	}
	return models.CandidateSlot{}, false
}
