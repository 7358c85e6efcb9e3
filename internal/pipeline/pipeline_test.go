package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"firestige.xyz/siemtap/internal/core"
	"firestige.xyz/siemtap/internal/core/decoder"
	"firestige.xyz/siemtap/internal/render"
	"firestige.xyz/siemtap/pkg/plugin"
	"firestige.xyz/siemtap/plugins/capture/memory"
)

// synFrame is a 54-byte Ethernet/IPv4/TCP SYN from 192.168.1.100:54321 to
// 8.8.8.8:80.
var synFrame = []byte{
	0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x08, 0x00,
	0x45, 0x00, 0x00, 0x28, 0x00, 0x01, 0x40, 0x00, 0x40, 0x06, 0x00, 0x00,
	192, 168, 1, 100, 8, 8, 8, 8,
	0xD4, 0x31, 0x00, 0x50, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x50, 0x02, 0xFF, 0xFF, 0x00, 0x00, 0x00, 0x00,
}

var ts = time.Unix(1700000000, 42000)

// recordingReporter keeps every record it is given.
type recordingReporter struct {
	name string

	mu      sync.Mutex
	records []core.OutputRecord
}

func (r *recordingReporter) Name() string                     { return r.name }
func (r *recordingReporter) Init(config map[string]any) error { return nil }
func (r *recordingReporter) Start(ctx context.Context) error  { return nil }
func (r *recordingReporter) Stop(ctx context.Context) error   { return nil }
func (r *recordingReporter) Flush(ctx context.Context) error  { return nil }
func (r *recordingReporter) Report(ctx context.Context, rec *core.OutputRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, *rec)
	return nil
}

func (r *recordingReporter) Records() []core.OutputRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]core.OutputRecord(nil), r.records...)
}

// mockReporter mocks every call but Name.
type mockReporter struct {
	mock.Mock
	name string
}

func (m *mockReporter) Name() string                     { return m.name }
func (m *mockReporter) Init(config map[string]any) error { return m.Called(config).Error(0) }
func (m *mockReporter) Start(ctx context.Context) error  { return m.Called(ctx).Error(0) }
func (m *mockReporter) Stop(ctx context.Context) error   { return m.Called(ctx).Error(0) }
func (m *mockReporter) Flush(ctx context.Context) error  { return m.Called(ctx).Error(0) }
func (m *mockReporter) Report(ctx context.Context, rec *core.OutputRecord) error {
	return m.Called(ctx, rec).Error(0)
}

func replay(frames ...[]byte) *memory.Handle {
	h := memory.NewHandle()
	for _, f := range frames {
		h.Push(memory.NewFrame(ts, f))
	}
	h.End()
	return h
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err, "handle is required")

	_, err = New(Config{Handle: replay(), Format: "xml"})
	assert.Error(t, err)

	_, err = New(Config{Handle: replay(), MaxPackets: -1})
	assert.Error(t, err)

	p, err := New(Config{Handle: replay()})
	require.NoError(t, err)
	assert.Equal(t, render.FormatJSON, p.format)
	assert.Equal(t, defaultBufferSize, p.bufferSize)
}

func TestRun_DeliversToAllReporters(t *testing.T) {
	a := &recordingReporter{name: "a"}
	b := &recordingReporter{name: "b"}

	p, err := New(Config{
		SessionID: "sess-1",
		Handle:    replay(synFrame, synFrame, synFrame[:20]),
		Reporters: []plugin.Reporter{a, b},
	})
	require.NoError(t, err)

	require.NoError(t, p.Run(context.Background()))

	for _, r := range []*recordingReporter{a, b} {
		records := r.Records()
		require.Len(t, records, 3, r.name)
		assert.Equal(t, "sess-1", records[0].SessionID)
		assert.Equal(t, "json", records[0].Format)
		assert.Contains(t, records[0].Line, `"src_ip":"192.168.1.100"`)
		assert.Equal(t, "8.8.8.8", records[1].Record.DstIP)
		assert.Empty(t, records[2].Record.SrcIP)
		assert.Equal(t, "aa:bb:cc:dd:ee:ff", records[2].Record.DstMAC)
	}

	stats := p.Stats()
	assert.EqualValues(t, 3, stats.Received)
	assert.EqualValues(t, 3, stats.Decoded)
	assert.EqualValues(t, 3, stats.Reported)
	assert.Zero(t, stats.ReportErrors)
	assert.EqualValues(t, 2, stats.Depth[core.LayerTransport])
	assert.EqualValues(t, 1, stats.Depth[core.LayerLink])
	assert.Zero(t, stats.Depth[core.LayerNetwork])
}

func TestRun_MaxPackets(t *testing.T) {
	h := replay(synFrame, synFrame, synFrame, synFrame, synFrame)
	r := &recordingReporter{name: "r"}

	p, err := NewBuilder().
		WithHandle(h).
		WithReporters(r).
		WithMaxPackets(2).
		WithBufferSize(1).
		Build()
	require.NoError(t, err)

	require.NoError(t, p.Run(context.Background()))
	assert.Len(t, r.Records(), 2)
	assert.EqualValues(t, 2, p.Stats().Decoded)

	_, err = h.ReadFrame()
	assert.ErrorIs(t, err, core.ErrCaptureClosed, "Run closes the handle")
}

func TestRun_ReporterErrorIsNotFatal(t *testing.T) {
	failing := &mockReporter{name: "failing"}
	failing.On("Report", mock.Anything, mock.Anything).Return(core.ErrNotConnected)
	ok := &recordingReporter{name: "ok"}

	p, err := New(Config{
		Handle:    replay(synFrame, synFrame),
		Reporters: []plugin.Reporter{failing, ok},
	})
	require.NoError(t, err)

	require.NoError(t, p.Run(context.Background()))
	assert.Len(t, ok.Records(), 2)

	stats := p.Stats()
	assert.EqualValues(t, 2, stats.ReportErrors)
	assert.EqualValues(t, 2, stats.Reported)
	failing.AssertNumberOfCalls(t, "Report", 2)
}

func TestRun_ReadErrorIsReturned(t *testing.T) {
	gone := errors.New("device gone")
	h := memory.NewHandle()
	h.Push(memory.NewFrame(ts, synFrame))
	h.PushError(gone)
	h.Push(memory.NewFrame(ts, synFrame))
	h.End()

	r := &recordingReporter{name: "r"}
	p, err := New(Config{Handle: h, Reporters: []plugin.Reporter{r}})
	require.NoError(t, err)

	err = p.Run(context.Background())
	assert.ErrorIs(t, err, gone)
	assert.Len(t, r.Records(), 1)
}

func TestRun_TimeoutContinues(t *testing.T) {
	h := memory.NewHandle()
	h.PushError(core.ErrCaptureTimeout)
	h.Push(memory.NewFrame(ts, synFrame))
	h.PushError(core.ErrCaptureTimeout)
	h.End()

	r := &recordingReporter{name: "r"}
	p, err := New(Config{Handle: h, Reporters: []plugin.Reporter{r}})
	require.NoError(t, err)

	require.NoError(t, p.Run(context.Background()))
	assert.Len(t, r.Records(), 1)
}

func TestRun_ContextCancel(t *testing.T) {
	h := memory.NewHandle() // never ends
	h.Push(memory.NewFrame(ts, synFrame))

	r := &recordingReporter{name: "r"}
	p, err := New(Config{Handle: h, Reporters: []plugin.Reporter{r}, DropWhenFull: true})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	assert.Eventually(t, func() bool { return len(r.Records()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_HexDumpsCapturedBytes(t *testing.T) {
	h := memory.NewHandle()
	h.Push(plugin.Frame{
		Meta: core.NewCaptureMetadata(ts, 20, 54),
		Data: synFrame,
	})
	h.End()

	r := &recordingReporter{name: "r"}
	p, err := New(Config{Handle: h, Format: render.FormatHex, Reporters: []plugin.Reporter{r}})
	require.NoError(t, err)
	require.NoError(t, p.Run(context.Background()))

	records := r.Records()
	require.Len(t, records, 1)
	assert.Equal(t, render.HexDump(synFrame[:20]), records[0].Line)
	assert.Equal(t, "hex", records[0].Format)
	assert.Empty(t, records[0].Record.SrcIP, "decoding stops at the captured length")
}

func TestRun_TextFormat(t *testing.T) {
	r := &recordingReporter{name: "r"}
	p, err := New(Config{Handle: replay(synFrame), Format: render.FormatText, Reporters: []plugin.Reporter{r}})
	require.NoError(t, err)
	require.NoError(t, p.Run(context.Background()))

	records := r.Records()
	require.Len(t, records, 1)
	assert.Contains(t, records[0].Line, "TCP Flags:       SYN")
}

// countingDecoder counts frames and delegates to the standard decoder.
type countingDecoder struct {
	mu    sync.Mutex
	lens  []int
	inner decoder.Decoder
}

func (d *countingDecoder) Decode(meta core.CaptureMetadata, data []byte) core.PacketRecord {
	d.mu.Lock()
	d.lens = append(d.lens, len(data))
	d.mu.Unlock()
	return d.inner.Decode(meta, data)
}

func TestNew_DefaultDecoder(t *testing.T) {
	p, err := New(Config{Handle: replay()})
	require.NoError(t, err)
	assert.IsType(t, &decoder.StandardDecoder{}, p.decoder)
}

func TestRun_UsesConfiguredDecoder(t *testing.T) {
	h := memory.NewHandle()
	h.Push(plugin.Frame{Meta: core.NewCaptureMetadata(ts, 34, 54), Data: synFrame})
	h.Push(memory.NewFrame(ts, synFrame))
	h.End()

	d := &countingDecoder{inner: decoder.NewStandardDecoder()}
	r := &recordingReporter{name: "r"}
	p, err := NewBuilder().
		WithHandle(h).
		WithDecoder(d).
		WithReporters(r).
		Build()
	require.NoError(t, err)
	require.NoError(t, p.Run(context.Background()))

	assert.Equal(t, []int{34, 54}, d.lens, "decoder sees frames cut to the captured length")
	records := r.Records()
	require.Len(t, records, 2)
	assert.Equal(t, "192.168.1.100", records[0].Record.SrcIP)
	assert.Zero(t, records[0].Record.SrcPort)
	assert.EqualValues(t, 80, records[1].Record.DstPort)
}

func TestRun_StampsHostname(t *testing.T) {
	r := &recordingReporter{name: "r"}
	p, err := NewBuilder().
		WithSessionID("sess-2").
		WithHostname("sensor-01").
		WithHandle(replay(synFrame, synFrame)).
		WithReporters(r).
		Build()
	require.NoError(t, err)
	require.NoError(t, p.Run(context.Background()))

	records := r.Records()
	require.Len(t, records, 2)
	for _, rec := range records {
		assert.Equal(t, "sensor-01", rec.Hostname)
		assert.Equal(t, "sess-2", rec.SessionID)
	}
}

func TestStartStop(t *testing.T) {
	ctx := context.Background()
	a := &mockReporter{name: "a"}
	a.On("Start", ctx).Return(nil)
	a.On("Flush", ctx).Return(nil)
	a.On("Stop", ctx).Return(nil)
	b := &mockReporter{name: "b"}
	b.On("Start", ctx).Return(nil)
	b.On("Flush", ctx).Return(errors.New("flush failed"))
	b.On("Stop", ctx).Return(nil)

	p, err := New(Config{Handle: replay(), Reporters: []plugin.Reporter{a, b}})
	require.NoError(t, err)

	require.NoError(t, p.Start(ctx))
	assert.Error(t, p.Stop(ctx), "flush errors are returned")
	require.NoError(t, p.Stop(ctx), "second stop is a no-op")

	a.AssertExpectations(t)
	b.AssertExpectations(t)
	a.AssertNumberOfCalls(t, "Stop", 1)
}

func TestStart_RollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	a := &mockReporter{name: "a"}
	a.On("Start", ctx).Return(nil)
	a.On("Stop", ctx).Return(nil)
	b := &mockReporter{name: "b"}
	b.On("Start", ctx).Return(errors.New("broker unreachable"))

	p, err := New(Config{Handle: replay(), Reporters: []plugin.Reporter{a, b}})
	require.NoError(t, err)

	err = p.Start(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "b")
	a.AssertCalled(t, "Stop", ctx)
	b.AssertNotCalled(t, "Stop", mock.Anything)
}

func BenchmarkProcessFrame(b *testing.B) {
	p, err := New(Config{Handle: replay(), Reporters: []plugin.Reporter{&discardReporter{}}})
	require.NoError(b, err)
	frame := memory.NewFrame(ts, synFrame)
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p.processFrame(ctx, frame)
	}
}

type discardReporter struct{ recordingReporter }

func (d *discardReporter) Report(ctx context.Context, rec *core.OutputRecord) error { return nil }
