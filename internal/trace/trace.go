// Package trace draws a PNG timeline of frame loop activity:
// frame work, scheduler ticks and throttle sleeps.
package trace

import (
	"errors"
	"fmt"
	"time"

	"github.com/fogleman/gg"
)

const (
	BlockFrame BlockType = iota
	BlockTasks
	BlockThrottle
)

// colors
const (
	colBack                 = "#fff"
	colText                 = "#001"
	colTimeline             = "#000"
	colTimelineStrokeSecond = "#111"
	colTimelineStrokeHalf   = "#333"
	colTimelineStroke100ms  = "#555"
	colTimelineStrokeBudget = "#999"
	colBlockThrottle        = "#777"
	colBlockFrame           = "#e40"
	colBlockTasks           = "#02e"
)

// geometry
const (
	widthPxPerSecond = float64(2000)
	widthPxPerMs     = widthPxPerSecond / 1000
	sampleHeight     = float64(50)
	mainPaddingX     = float64(20)
	mainPaddingY     = float64(40)
	timeLineMargin   = float64(4)
	infoHeight       = float64(15)
)

var ErrNoBlocks = errors.New("trace has no blocks")

type (
	BlockType uint8

	Block struct {
		Type    BlockType
		StartAt time.Time
		EndAt   time.Time
	}

	Timeline struct {
		Title      string
		StartAt    time.Time
		FrameLimit time.Duration
		Blocks     []Block
	}
)

func (t *Timeline) Add(bType BlockType, startAt time.Time, duration time.Duration) {
	if duration <= 0 {
		return
	}

	t.Blocks = append(t.Blocks, Block{
		Type:    bType,
		StartAt: startAt,
		EndAt:   startAt.Add(duration),
	})
}

// Duration is the time from StartAt to the end of the last block.
func (t *Timeline) Duration() time.Duration {
	var last time.Time
	for _, b := range t.Blocks {
		if b.EndAt.After(last) {
			last = b.EndAt
		}
	}

	if last.IsZero() {
		return 0
	}

	return last.Sub(t.StartAt)
}

// Render draws the timeline into a new context.
func Render(t Timeline) (*gg.Context, error) {
	if len(t.Blocks) == 0 {
		return nil, ErrNoBlocks
	}

	timelineWidth := float64(t.Duration().Milliseconds()) * widthPxPerMs
	fullWidth := (mainPaddingX * 2) + timelineWidth
	timelineY := mainPaddingY + infoHeight + sampleHeight + timeLineMargin
	fullHeight := timelineY + timeLineMargin + mainPaddingY

	dc := gg.NewContext(int(fullWidth), int(fullHeight))

	// bg
	dc.SetHexColor(colBack)
	dc.Clear()

	// top info
	dc.SetHexColor(colText)
	dc.DrawStringAnchored(t.Title, mainPaddingX, 15, 0, 0)

	// timeline
	dc.SetHexColor(colTimeline)
	dc.DrawLine(mainPaddingX, timelineY, mainPaddingX+timelineWidth, timelineY)
	dc.Stroke()

	drawStroke := func(interval time.Duration, color string, halfHeight float64, withText bool) {
		step := float64(interval.Microseconds()) / 1000 * widthPxPerMs
		if step < 1 {
			return
		}

		curTime := time.Duration(0)
		for x := mainPaddingX; x <= mainPaddingX+timelineWidth; x += step {
			dc.SetHexColor(color)
			dc.SetLineWidth(1)
			if halfHeight >= 10 {
				dc.SetLineWidth(2)
			}

			dc.DrawLine(x, timelineY-halfHeight, x, timelineY+halfHeight)
			dc.Stroke()

			if withText {
				dc.DrawStringAnchored(fmt.Sprintf("%dms", curTime.Milliseconds()), x, timelineY+halfHeight+5, 0.5, 0.5)
			}

			curTime += interval
		}
	}

	drawStroke(time.Second, colTimelineStrokeSecond, 10, false)
	drawStroke(time.Millisecond*500, colTimelineStrokeHalf, 8, false)
	drawStroke(time.Millisecond*100, colTimelineStroke100ms, 4, true)
	drawStroke(t.FrameLimit, colTimelineStrokeBudget, 1, false)

	for _, b := range t.Blocks {
		relativeStartAt := b.StartAt.Sub(t.StartAt)
		x := mainPaddingX + (float64(relativeStartAt.Microseconds()) / 1000 * widthPxPerMs)
		width := float64(b.EndAt.Sub(b.StartAt).Microseconds()) / 1000 * widthPxPerMs

		dc.SetHexColor(blockColor(b.Type))
		dc.DrawRectangle(x, timelineY-timeLineMargin-sampleHeight, width, sampleHeight)
		dc.Fill()
	}

	return dc, nil
}

// SavePNG renders the timeline and writes it to path.
func SavePNG(t Timeline, path string) error {
	dc, err := Render(t)
	if err != nil {
		return err
	}

	if err := dc.SavePNG(path); err != nil {
		return fmt.Errorf("save trace %q: %w", path, err)
	}

	return nil
}

func blockColor(t BlockType) string {
	switch t {
	case BlockFrame:
		return colBlockFrame
	case BlockTasks:
		return colBlockTasks
	default:
		return colBlockThrottle
	}
}
