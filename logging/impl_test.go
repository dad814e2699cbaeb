package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zapcore"
	"go.viam.com/test"
)

type pose struct {
	X     float64
	Y     float64
	Theta float64
	hint  string
}

// assertLogMatches will fuzzy match log lines. It checks the time parses, but ignores the exact
// time. It expects a match on the filename, but the exact line number can be wrong.
func assertLogMatches(t *testing.T, actual *bytes.Buffer, expected string) {
	t.Helper()

	output, err := actual.ReadString('\n')
	test.That(t, err, test.ShouldBeNil)

	actualParts := strings.Split(strings.TrimSuffix(output, "\n"), "\t")
	expectedParts := strings.Split(expected, "\t")
	test.That(t, len(actualParts), test.ShouldEqual, len(expectedParts))

	_, err = time.Parse(DefaultTimeFormatStr, actualParts[0])
	test.That(t, err, test.ShouldBeNil)
	// Log level and logger name.
	test.That(t, actualParts[1], test.ShouldEqual, expectedParts[1])
	test.That(t, actualParts[2], test.ShouldEqual, expectedParts[2])

	// Filename:line_number.
	actualFilename, actualLineNumber, found := strings.Cut(actualParts[3], ":")
	test.That(t, found, test.ShouldBeTrue)
	expectedFilename, _, found := strings.Cut(expectedParts[3], ":")
	test.That(t, found, test.ShouldBeTrue)
	test.That(t, actualFilename, test.ShouldEqual, expectedFilename)
	_, err = strconv.Atoi(actualLineNumber)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, actualParts[4], test.ShouldEqual, expectedParts[4])
	if len(actualParts) == 5 {
		return
	}

	expectedMap := make(map[string]any)
	test.That(t, json.Unmarshal([]byte(expectedParts[5]), &expectedMap), test.ShouldBeNil)
	actualMap := make(map[string]any)
	test.That(t, json.Unmarshal([]byte(actualParts[5]), &actualMap), test.ShouldBeNil)
	test.That(t, actualMap, test.ShouldResemble, expectedMap)
}

func TestConsoleOutputFormat(t *testing.T) {
	notStdout := &bytes.Buffer{}
	logger := NewWriterLogger("sim", DEBUG, notStdout)

	logger.Info("impl Info log")
	assertLogMatches(t, notStdout,
		`2023-10-30T09:12:09.459Z	INFO	sim	logging/impl_test.go:67	impl Info log`)

	logger.Infof("impl %s log", "infof")
	assertLogMatches(t, notStdout,
		`2023-10-30T09:12:09.459Z	INFO	sim	logging/impl_test.go:71	impl infof log`)

	logger.Debugw("wheel command", "left", 1.5, "right", -2)
	assertLogMatches(t, notStdout,
		`2023-10-30T09:12:09.459Z	DEBUG	sim	logging/impl_test.go:75	wheel command	{"left":1.5,"right":-2}`)

	// Only public fields are serialized.
	logger.Warnw("estimate", "pose", pose{1, 2, 0.5, "hidden"})
	assertLogMatches(t, notStdout,
		`2023-10-30T09:12:09.459Z	WARN	sim	logging/impl_test.go:80	estimate	{"pose":{"X":1,"Y":2,"Theta":0.5}}`)

	logger.Errorw("unpaired", "key")
	assertLogMatches(t, notStdout,
		`2023-10-30T09:12:09.459Z	ERROR	sim	logging/impl_test.go:84	unpaired	{"key":"unpaired log key"}`)
}

func TestLevelsAndSubloggers(t *testing.T) {
	notStdout := &bytes.Buffer{}
	logger := NewWriterLogger("sim", INFO, notStdout)

	logger.Debug("dropped")
	test.That(t, notStdout.Len(), test.ShouldEqual, 0)

	ctx := EnableDebugMode(context.Background(), "")
	test.That(t, IsDebugMode(ctx), test.ShouldBeTrue)
	test.That(t, IsDebugMode(context.Background()), test.ShouldBeFalse)
	logger.CDebugw(ctx, "kept", "tick", 3)
	assertLogMatches(t, notStdout,
		`2023-10-30T09:12:09.459Z	DEBUG	sim	logging/impl_test.go:97	kept	{"tick":3}`)

	sub := logger.Sublogger("ekf")
	sub.Warnw("rejected")
	assertLogMatches(t, notStdout,
		`2023-10-30T09:12:09.459Z	WARN	sim.ekf	logging/impl_test.go:102	rejected`)

	sub.SetLevel(ERROR)
	sub.Warnw("dropped")
	test.That(t, notStdout.Len(), test.ShouldEqual, 0)
	test.That(t, logger.GetLevel(), test.ShouldEqual, INFO)
	test.That(t, logger.Sync(), test.ShouldBeNil)
}

func TestObservedTestLogger(t *testing.T) {
	logger, logs := NewObservedTestLogger(t)
	logger.Sublogger("runner").Infow("tick", "step", 7)
	logger.Debugf("%d landmarks", 2)

	test.That(t, logs.Len(), test.ShouldEqual, 2)
	entries := logs.FilterMessage("tick").All()
	test.That(t, entries, test.ShouldHaveLength, 1)
	test.That(t, entries[0].LoggerName, test.ShouldEqual, "runner")
	test.That(t, entries[0].ContextMap()["step"], test.ShouldEqual, int64(7))
	test.That(t, logs.FilterLevelExact(zapcore.DebugLevel).Len(), test.ShouldEqual, 1)
}

func TestLevelFromString(t *testing.T) {
	for _, tc := range []struct {
		in       string
		expected Level
	}{
		{"debug", DEBUG},
		{"INFO", INFO},
		{"Warn", WARN},
		{"warning", WARN},
		{"error", ERROR},
	} {
		level, err := LevelFromString(tc.in)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, level, test.ShouldEqual, tc.expected)
	}
	_, err := LevelFromString("loud")
	test.That(t, err, test.ShouldNotBeNil)

	var level Level
	test.That(t, json.Unmarshal([]byte(`"warn"`), &level), test.ShouldBeNil)
	test.That(t, level, test.ShouldEqual, WARN)
	data, err := json.Marshal(ERROR)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(data), test.ShouldEqual, `"error"`)
}
