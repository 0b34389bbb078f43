package transcode

import (
	"strconv"
	"strings"
	"time"
)

// ProgressUpdate captures one snapshot of encoder progress.
type ProgressUpdate struct {
	Percent float64
	Frame   int64
	FPS     float64
	Speed   float64
	OutTime time.Duration
	Done    bool
}

// progressParser accumulates the key=value lines ffmpeg emits on its
// -progress pipe and produces an update each time a block terminates with a
// "progress=" line.
type progressParser struct {
	totalDuration time.Duration
	current       ProgressUpdate
}

func newProgressParser(totalDuration time.Duration) *progressParser {
	return &progressParser{totalDuration: totalDuration}
}

// Feed consumes one line of progress output. It returns an update and true
// when the line completes a progress block.
func (p *progressParser) Feed(line string) (ProgressUpdate, bool) {
	key, value, found := strings.Cut(strings.TrimSpace(line), "=")
	if !found {
		return ProgressUpdate{}, false
	}
	value = strings.TrimSpace(value)

	switch key {
	case "frame":
		if frame, err := strconv.ParseInt(value, 10, 64); err == nil {
			p.current.Frame = frame
		}
	case "fps":
		if fps, err := strconv.ParseFloat(value, 64); err == nil {
			p.current.FPS = fps
		}
	case "speed":
		if speed, err := strconv.ParseFloat(strings.TrimSuffix(value, "x"), 64); err == nil {
			p.current.Speed = speed
		}
	case "out_time_ms":
		// Despite the name, ffmpeg reports this field in microseconds.
		if micros, err := strconv.ParseInt(value, 10, 64); err == nil && micros >= 0 {
			p.current.OutTime = time.Duration(micros) * time.Microsecond
		}
	case "progress":
		update := p.current
		update.Done = value == "end"
		update.Percent = p.percent(update.OutTime, update.Done)
		return update, true
	}
	return ProgressUpdate{}, false
}

// percent maps the encoded timestamp onto 0..99. Only the final "end" block
// reports 100; intermediate blocks are capped so consumers never observe a
// premature completion.
func (p *progressParser) percent(outTime time.Duration, done bool) float64 {
	if done {
		return 100
	}
	if p.totalDuration <= 0 {
		return 0
	}
	percent := float64(outTime) / float64(p.totalDuration) * 100
	if percent < 0 {
		return 0
	}
	if percent > 99 {
		return 99
	}
	return percent
}
