package logger

import (
	"bytes"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// capture redirects output for the test and restores the defaults after.
func capture(t *testing.T, verbose bool) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(verbose)
	t.Cleanup(func() {
		SetVerbose(false)
		SetOutput(os.Stderr)
	})
	return &buf
}

func TestSetVerbose(t *testing.T) {
	capture(t, false)
	assert.False(t, IsVerbose())

	SetVerbose(true)
	assert.True(t, IsVerbose())
}

func TestPackageLevels(t *testing.T) {
	tests := []struct {
		name    string
		log     func(string, ...any)
		verbose bool
		want    string
	}{
		{"debug verbose", Debug, true, "[DEBUG] took 3ms\n"},
		{"debug quiet", Debug, false, ""},
		{"info verbose", Info, true, "[INFO] took 3ms\n"},
		{"info quiet", Info, false, ""},
		{"warn verbose", Warn, true, "[WARN] took 3ms\n"},
		{"warn quiet", Warn, false, ""},
		{"error verbose", Error, true, "[ERROR] took 3ms\n"},
		{"error quiet", Error, false, "[ERROR] took 3ms\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := capture(t, tt.verbose)

			tt.log("took %dms", 3)

			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestFor_PrefixesComponent(t *testing.T) {
	buf := capture(t, true)
	log := For("hnsw")

	log.Debug("built %d nodes", 10)
	log.Info("ready")
	log.Warn("slow")
	log.Error("failed: %v", "disk")

	assert.Equal(t,
		"[DEBUG] hnsw: built 10 nodes\n"+
			"[INFO] hnsw: ready\n"+
			"[WARN] hnsw: slow\n"+
			"[ERROR] hnsw: failed: disk\n",
		buf.String())
}

func TestFor_QuietKeepsErrors(t *testing.T) {
	buf := capture(t, false)
	log := For("scheduler")

	log.Debug("tick")
	log.Info("run")
	log.Warn("late")
	log.Error("job failed")

	assert.Equal(t, "[ERROR] scheduler: job failed\n", buf.String())
}

func TestSection(t *testing.T) {
	buf := capture(t, false)
	Section("Cleanup")
	assert.Empty(t, buf.String())

	SetVerbose(true)
	Section("Cleanup")
	assert.Equal(t, "\n=== Cleanup ===\n", buf.String())
}

func TestConcurrentWrites(t *testing.T) {
	buf := capture(t, true)
	log := For("worker")

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info("item %d", i)
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, bytes.Count(buf.Bytes(), []byte("\n")))
}
