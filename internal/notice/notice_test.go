package notice

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestMultiAndRecorder(t *testing.T) {
	a, b := &Recorder{}, &Recorder{}
	m := Multi{a, nil, b}
	m.Notify(New(LevelWarning, KindStaleLinkWarning, "x"))
	m.Notify(New(LevelInfo, KindMoved, "y"))

	for _, r := range []*Recorder{a, b} {
		kinds := r.Kinds()
		if len(kinds) != 2 || kinds[0] != KindStaleLinkWarning || kinds[1] != KindMoved {
			t.Errorf("kinds = %v", kinds)
		}
	}
	if got := a.Notices()[0].Message; got != "x" {
		t.Errorf("message = %q", got)
	}
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	l := Log{Logger: slog.New(slog.NewJSONHandler(&buf, nil))}
	l.Notify(New(LevelError, KindDestinationCollision, "Folder already exists: Docs/DesignV2"))

	out := buf.String()
	if !strings.Contains(out, `"level":"ERROR"`) || !strings.Contains(out, "notice: destination_collision") {
		t.Errorf("log output = %s", out)
	}
}
