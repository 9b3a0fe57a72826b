package log

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestProfilerRecordsOneSample(t *testing.T) {
	p := NewProfiler(100)

	stop := p.Start("Endpoint/handshake")
	time.Sleep(5 * time.Millisecond)
	stop()

	m, ok := p.GetMeasurement("Endpoint/handshake")
	require.True(t, ok)
	require.Equal(t, uint64(1), m.Count())
	require.GreaterOrEqual(t, m.lastTime, 5*time.Millisecond)
}

func TestProfilerAccumulatesAcrossCalls(t *testing.T) {
	p := NewProfiler(100)

	for i := 0; i < 5; i++ {
		stop := p.Start("Dispatcher/getChunk")
		time.Sleep(time.Millisecond)
		stop()
	}

	m, ok := p.GetMeasurement("Dispatcher/getChunk")
	require.True(t, ok)
	require.Equal(t, uint64(5), m.Count())

	avg := m.Average()
	require.LessOrEqual(t, m.minTime, avg)
	require.LessOrEqual(t, avg, m.maxTime)
}

func TestProfilerTimeRunsFunctionAndRecords(t *testing.T) {
	p := NewProfiler(100)

	ran := false
	p.Time("Plugin/setParameter", func() {
		ran = true
		time.Sleep(2 * time.Millisecond)
	})
	require.True(t, ran)

	m, ok := p.GetMeasurement("Plugin/setParameter")
	require.True(t, ok)
	require.Equal(t, uint64(1), m.Count())
}

func TestProfilerDisabledSkipsRecording(t *testing.T) {
	p := NewProfiler(100)
	p.SetEnabled(false)

	stop := p.Start("test/soft-limit")
	stop()

	_, ok := p.GetMeasurement("test/soft-limit")
	require.False(t, ok)
}

func TestProfilerResetClearsMeasurements(t *testing.T) {
	p := NewProfiler(100)

	stop := p.Start("test/reset")
	stop()
	p.Reset()

	require.Empty(t, p.GetAllMeasurements())
}

func TestProfilerPercentileSortsRingBufferSamples(t *testing.T) {
	p := NewProfiler(10)

	durations := []time.Duration{
		5 * time.Millisecond,
		1 * time.Millisecond,
		9 * time.Millisecond,
		3 * time.Millisecond,
		7 * time.Millisecond,
	}
	for _, d := range durations {
		p.record("test/percentile", d)
	}

	m, ok := p.GetMeasurement("test/percentile")
	require.True(t, ok)
	require.Equal(t, 9*time.Millisecond, m.Percentile(100))
	require.Equal(t, 1*time.Millisecond, m.Percentile(0))
}

func TestProfilerReportMentionsEveryTag(t *testing.T) {
	p := NewProfiler(100)

	p.Time("Endpoint/handshake", func() { time.Sleep(time.Millisecond) })
	p.Time("Dispatcher/editOpen", func() { time.Sleep(2 * time.Millisecond) })

	report := p.Report()
	require.Contains(t, report, "Endpoint/handshake")
	require.Contains(t, report, "Dispatcher/editOpen")
	require.Contains(t, report, "Count:")
}

func TestDefaultProfilerGlobalHelpers(t *testing.T) {
	DefaultProfiler.Reset()
	DefaultProfiler.SetEnabled(true)

	stop := Start("test/global")
	stop()
	Time("test/global2", func() {})

	report := Report()
	require.True(t, strings.Contains(report, "test/global"))
}

func BenchmarkProfilerStartStop(b *testing.B) {
	p := NewProfiler(1000)
	for i := 0; i < b.N; i++ {
		stop := p.Start("bench")
		stop()
	}
}

func BenchmarkProfilerDisabled(b *testing.B) {
	p := NewProfiler(1000)
	p.SetEnabled(false)
	for i := 0; i < b.N; i++ {
		stop := p.Start("bench")
		stop()
	}
}
