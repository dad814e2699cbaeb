package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	urfavecli "github.com/urfave/cli/v2"
	"go.viam.com/test"

	"go.viam.com/slamsim/robot"
)

const testConfig = `{
	"rate": 100,
	"obstacles": {"x": [0.5, -0.4], "y": [0.3, 0.6], "r": 0.038},
	"wheel_radius": 0.033,
	"track_width": 0.16,
	"motor_cmd_per_rad_sec": 41.67,
	"motor_cmd_max": 265,
	"encoder_ticks_per_rad": 651.8986,
	"slip_fraction": 0.01,
	"max_range": 2,
	"circle": {"velocity": 0.5, "radius": 0.3},
	"log_level": "error"
}`

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	test.That(t, os.WriteFile(path, []byte(contents), 0o600), test.ShouldBeNil)
	return path
}

func runApp(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err := NewApp(&out, &errOut).Run(append([]string{"slamsim"}, args...))
	return out.String(), errOut.String(), err
}

func TestValidate(t *testing.T) {
	path := writeConfig(t, testConfig)
	out, _, err := runApp(t, "validate", "--config", path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "is valid")

	_, _, err = runApp(t, "validate", "--config", writeConfig(t, `{"wheel_radius": 1}`))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "motor_cmd_per_rad_sec")

	_, _, err = runApp(t, "validate")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestValidateReportsEveryProblem(t *testing.T) {
	exiter := urfavecli.OsExiter
	t.Cleanup(func() { urfavecli.OsExiter = exiter })
	urfavecli.OsExiter = func(code int) {
		t.Fatalf("app exited with code %d instead of returning the error", code)
	}

	_, errOut, err := runApp(t, "validate", "--config", writeConfig(t, `{"wheel_radius": 1}`))
	test.That(t, err, test.ShouldNotBeNil)
	for _, field := range []string{"track_width", "motor_cmd_max", "encoder_ticks_per_rad"} {
		test.That(t, err.Error(), test.ShouldContainSubstring, field)
	}
	test.That(t, errOut, test.ShouldBeEmpty)
}

func TestSimulate(t *testing.T) {
	path := writeConfig(t, testConfig)
	trajectory := filepath.Join(t.TempDir(), "trajectory.csv")
	out, _, err := runApp(t, "simulate", "--config", path, "--ticks", "200", "--trajectory-log", trajectory)
	test.That(t, err, test.ShouldBeNil)

	var snap robot.Snapshot
	test.That(t, json.Unmarshal([]byte(out), &snap), test.ShouldBeNil)
	test.That(t, snap.Step, test.ShouldEqual, uint64(200))
	test.That(t, snap.Time, test.ShouldAlmostEqual, 2, 1e-9)
	// two seconds at 0.5 rad/s around the circle
	test.That(t, snap.TruePose.Theta, test.ShouldAlmostEqual, 1, 0.1)
	test.That(t, snap.Map, test.ShouldNotBeEmpty)
	test.That(t, snap.Obstacles, test.ShouldHaveLength, 2)

	data, err := os.ReadFile(trajectory)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, bytes.Count(data, []byte("\n")), test.ShouldEqual, 11)
}

func TestSimulateWithoutCircle(t *testing.T) {
	path := writeConfig(t, testConfig)
	out, _, err := runApp(t, "simulate", "--config", path, "--ticks", "10", "--circle=false")
	test.That(t, err, test.ShouldBeNil)

	var snap robot.Snapshot
	test.That(t, json.Unmarshal([]byte(out), &snap), test.ShouldBeNil)
	test.That(t, snap.TruePose.X, test.ShouldEqual, 0.0)
	test.That(t, snap.TruePose.Y, test.ShouldEqual, 0.0)
}

func TestRunForDuration(t *testing.T) {
	path := writeConfig(t, testConfig)
	_, _, err := runApp(t, "run", "--config", path, "--duration", "200ms", "--circle")
	test.That(t, err, test.ShouldBeNil)
}
