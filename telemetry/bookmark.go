package telemetry

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/pthm-cable/wealthsim/config"
)

// BookmarkType identifies the type of bookmark.
type BookmarkType string

const (
	BookmarkGiniSpike          BookmarkType = "gini_spike"
	BookmarkPopulationCollapse BookmarkType = "population_collapse"
	BookmarkConcentration      BookmarkType = "concentration"
	BookmarkStableDistribution BookmarkType = "stable_distribution"
)

// Bookmark marks a notable step of a run.
type Bookmark struct {
	Type        BookmarkType `csv:"type" json:"type"`
	Time        int          `csv:"time" json:"time"`
	Description string       `csv:"description" json:"description"`
}

// LogBookmark logs the bookmark using slog.
func (b Bookmark) LogBookmark() {
	slog.Info("bookmark",
		"type", string(b.Type),
		"time", b.Time,
		"description", b.Description,
	)
}

// BookmarkDetector detects notable steps from the report series.
type BookmarkDetector struct {
	cfg config.BookmarksConfig

	// Rolling history (circular buffer)
	history     []StepReport
	historySize int
	historyIdx  int
	historyFull bool

	// State tracking
	populationPeak   int
	concentrated     bool
	stableStepsCount int
}

// NewBookmarkDetector creates a detector with the given history size.
func NewBookmarkDetector(historySize int, cfg config.BookmarksConfig) *BookmarkDetector {
	if historySize < 3 {
		historySize = 3
	}
	return &BookmarkDetector{
		cfg:         cfg,
		history:     make([]StepReport, historySize),
		historySize: historySize,
	}
}

// Check analyzes the latest report and returns any triggered bookmarks.
func (bd *BookmarkDetector) Check(r StepReport) []Bookmark {
	var bookmarks []Bookmark

	if bd.historyFull || bd.historyIdx > 0 {
		if b := bd.checkGiniSpike(r); b != nil {
			bookmarks = append(bookmarks, *b)
		}
		if b := bd.checkPopulationCollapse(r); b != nil {
			bookmarks = append(bookmarks, *b)
		}
		if b := bd.checkStableDistribution(r); b != nil {
			bookmarks = append(bookmarks, *b)
		}
	}
	if b := bd.checkConcentration(r); b != nil {
		bookmarks = append(bookmarks, *b)
	}

	bd.addToHistory(r)
	if r.Population > bd.populationPeak {
		bd.populationPeak = r.Population
	}
	return bookmarks
}

func (bd *BookmarkDetector) addToHistory(r StepReport) {
	bd.history[bd.historyIdx] = r
	bd.historyIdx = (bd.historyIdx + 1) % bd.historySize
	if bd.historyIdx == 0 {
		bd.historyFull = true
	}
}

func (bd *BookmarkDetector) getHistory() []StepReport {
	if bd.historyFull {
		return bd.history
	}
	return bd.history[:bd.historyIdx]
}

func (bd *BookmarkDetector) checkGiniSpike(r StepReport) *Bookmark {
	history := bd.getHistory()
	if len(history) < 2 || bd.cfg.GiniSpike.Delta <= 0 {
		return nil
	}

	var sum float64
	for _, h := range history {
		sum += h.GiniIndex
	}
	avg := sum / float64(len(history))

	if r.GiniIndex-avg > bd.cfg.GiniSpike.Delta {
		return &Bookmark{
			Type:        BookmarkGiniSpike,
			Time:        r.Time,
			Description: fmt.Sprintf("Gini %.3f is %.3f above rolling average %.3f", r.GiniIndex, r.GiniIndex-avg, avg),
		}
	}
	return nil
}

func (bd *BookmarkDetector) checkPopulationCollapse(r StepReport) *Bookmark {
	if bd.populationPeak == 0 {
		return nil
	}
	c := bd.cfg.PopulationCollapse

	drop := 1.0 - float64(r.Population)/float64(bd.populationPeak)
	if drop > c.DropPercent && r.Population < bd.populationPeak-c.MinDrop {
		oldPeak := bd.populationPeak
		bd.populationPeak = r.Population

		return &Bookmark{
			Type:        BookmarkPopulationCollapse,
			Time:        r.Time,
			Description: fmt.Sprintf("Population fell %.0f%% from peak %d to %d", drop*100, oldPeak, r.Population),
		}
	}
	return nil
}

// checkConcentration fires once each time the top decile share crosses the
// threshold from below.
func (bd *BookmarkDetector) checkConcentration(r StepReport) *Bookmark {
	threshold := bd.cfg.Concentration.TopShare
	if threshold <= 0 {
		return nil
	}
	if r.WealthShareTop < threshold {
		bd.concentrated = false
		return nil
	}
	if bd.concentrated {
		return nil
	}
	bd.concentrated = true
	return &Bookmark{
		Type:        BookmarkConcentration,
		Time:        r.Time,
		Description: fmt.Sprintf("Top decile holds %.1f%% of wealth", r.WealthShareTop*100),
	}
}

func (bd *BookmarkDetector) checkStableDistribution(r StepReport) *Bookmark {
	c := bd.cfg.StableDistribution
	if c.StableSteps <= 0 || r.Population == 0 {
		bd.stableStepsCount = 0
		return nil
	}

	prev := bd.history[(bd.historyIdx+bd.historySize-1)%bd.historySize]
	if math.Abs(r.GiniIndex-prev.GiniIndex) <= c.GiniTolerance {
		bd.stableStepsCount++
	} else {
		bd.stableStepsCount = 0
	}

	if bd.stableStepsCount == c.StableSteps {
		return &Bookmark{
			Type:        BookmarkStableDistribution,
			Time:        r.Time,
			Description: fmt.Sprintf("Gini held near %.3f for %d steps", r.GiniIndex, c.StableSteps),
		}
	}
	return nil
}
