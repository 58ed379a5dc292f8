package schedule

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	appLog "loadshedcal/internal/log"
	"loadshedcal/internal/model"
)

// localLayouts are the offset-less ISO-8601 forms the feed uses; they are
// read in the configured location.
var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// rawWindow is one record of the JSON feed.
type rawWindow struct {
	Start string     `json:"start"`
	End   string     `json:"end"`
	Stage stageValue `json:"stage"`
}

// stageValue accepts the stage as either a JSON string or number.
type stageValue string

func (s *stageValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*s = stageValue(str)
		return nil
	}
	*s = stageValue(b)
	return nil
}

// ParseJSON decodes the JSON feed into stage windows in feed order. A body
// that is not a JSON array fails; individual records that cannot be parsed,
// or that name a stage outside the rotation, are logged and skipped.
func ParseJSON(body []byte, loc *time.Location) ([]model.StageWindow, error) {
	var records []json.RawMessage
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("schedule: decode feed: %w", err)
	}

	windows := make([]model.StageWindow, 0, len(records))
	for i, rec := range records {
		w, err := parseRecord(rec, loc)
		if err != nil {
			appLog.Warn("schedule: skipping feed record", "index", i, "record", string(rec), "reason", err.Error())
			continue
		}
		windows = append(windows, w)
	}
	return windows, nil
}

func parseRecord(rec json.RawMessage, loc *time.Location) (model.StageWindow, error) {
	var raw rawWindow
	if err := json.Unmarshal(rec, &raw); err != nil {
		return model.StageWindow{}, err
	}
	start, err := parseLocalTime(raw.Start, loc)
	if err != nil {
		return model.StageWindow{}, fmt.Errorf("start: %w", err)
	}
	end, err := parseLocalTime(raw.End, loc)
	if err != nil {
		return model.StageWindow{}, fmt.Errorf("end: %w", err)
	}
	stage, err := parseStage(string(raw.Stage))
	if err != nil {
		return model.StageWindow{}, err
	}
	return model.NewStageWindow(start, end, stage), nil
}

func parseLocalTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(loc), nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

// parseStage validates the stage against the range the rotation covers.
func parseStage(s string) (int, error) {
	stage, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("stage %q: %w", s, err)
	}
	if !model.ValidStage(stage) {
		return 0, fmt.Errorf("stage %d outside %d..%d", stage, model.MinStage, model.MaxStage)
	}
	return stage, nil
}
