// ABOUTME: Tests for the plugin processing engine
// ABOUTME: Covers slot lifecycle, fault isolation, batch fan-out, and chains
package engine

import (
	"errors"
	"sync"
	"testing"

	"github.com/novastudio/novabridge-go/internal/audio"
)

// doubleHost multiplies every sample by two.
type doubleHost struct{}

func (doubleHost) Process(chs [][]float32, sampleRate int) ([][]float32, error) {
	return audio.ApplyGain(chs, 2.0), nil
}

// failHost always errors.
type failHost struct{}

func (failHost) Process(chs [][]float32, sampleRate int) ([][]float32, error) {
	return nil, errors.New("deliberate failure")
}

// panicHost always panics.
type panicHost struct{}

func (panicHost) Process(chs [][]float32, sampleRate int) ([][]float32, error) {
	panic("deliberate panic")
}

// orderHost appends its tag to a shared trace, for chain ordering checks.
type orderHost struct {
	mu    *sync.Mutex
	trace *[]string
	tag   string
}

func (o orderHost) Process(chs [][]float32, sampleRate int) ([][]float32, error) {
	o.mu.Lock()
	*o.trace = append(*o.trace, o.tag)
	o.mu.Unlock()
	return chs, nil
}

func engineConfig() audio.Config {
	cfg := audio.DefaultConfig()
	cfg.BlockSize = 8
	return cfg
}

func onesBlock(channels, frames int) [][]float32 {
	chs := audio.NewChannels(channels, frames)
	for _, ch := range chs {
		for i := range ch {
			ch[i] = 1.0
		}
	}
	return chs
}

func assertAllSamples(t *testing.T, chs [][]float32, want float32) {
	t.Helper()
	for c, ch := range chs {
		for i, v := range ch {
			if v != want {
				t.Fatalf("sample (%d,%d) = %f, want %f", c, i, v, want)
			}
		}
	}
}

func TestProcessThroughSlot(t *testing.T) {
	// Scenario: add a slot whose host doubles every sample, process a
	// block of ones, get twos; after removal the same call passes through.
	e := New(8)

	if !e.AddSlot("s1", doubleHost{}, engineConfig()) {
		t.Fatal("AddSlot failed")
	}

	out := e.Process("s1", onesBlock(2, 8))
	assertAllSamples(t, out, 2.0)

	e.RemoveSlot("s1")

	out = e.Process("s1", onesBlock(2, 8))
	assertAllSamples(t, out, 1.0)
}

func TestProcessUnknownSlotPassthrough(t *testing.T) {
	e := New(8)

	in := onesBlock(2, 4)
	out := e.Process("missing", in)

	assertAllSamples(t, out, 1.0)
	if len(out) != len(in) || len(out[0]) != len(in[0]) {
		t.Error("pass-through changed block shape")
	}
}

func TestProcessHostErrorPassthrough(t *testing.T) {
	e := New(8)
	e.AddSlot("bad", failHost{}, engineConfig())

	out := e.Process("bad", onesBlock(2, 8))
	assertAllSamples(t, out, 1.0)

	stats, ok := e.SlotStats("bad")
	if !ok {
		t.Fatal("slot stats missing")
	}
	if stats.BlocksProcessed != 0 {
		t.Errorf("blocks processed = %d, want 0 after failure", stats.BlocksProcessed)
	}
}

func TestProcessHostPanicContained(t *testing.T) {
	e := New(8)
	e.AddSlot("explosive", panicHost{}, engineConfig())

	// Must not panic out of Process.
	out := e.Process("explosive", onesBlock(1, 4))
	assertAllSamples(t, out, 1.0)

	// Engine still serves other slots.
	e.AddSlot("ok", doubleHost{}, engineConfig())
	out = e.Process("ok", onesBlock(1, 4))
	assertAllSamples(t, out, 2.0)
}

func TestAddSlotLimitAndReplace(t *testing.T) {
	e := New(2)

	if !e.AddSlot("a", doubleHost{}, engineConfig()) {
		t.Fatal("first add failed")
	}
	if !e.AddSlot("b", doubleHost{}, engineConfig()) {
		t.Fatal("second add failed")
	}
	if e.AddSlot("c", doubleHost{}, engineConfig()) {
		t.Error("add beyond max instances should fail")
	}

	// Replacing an existing id works even at capacity.
	if !e.AddSlot("a", passthroughHostForTest(), engineConfig()) {
		t.Error("replace of existing slot should succeed")
	}
	out := e.Process("a", onesBlock(1, 4))
	assertAllSamples(t, out, 1.0)
}

func passthroughHostForTest() Host { return &passthroughHost{} }

func TestRemoveSlotIdempotent(t *testing.T) {
	e := New(8)
	e.RemoveSlot("never-existed")
	e.AddSlot("x", doubleHost{}, engineConfig())
	e.RemoveSlot("x")
	e.RemoveSlot("x")

	if e.HasSlot("x") {
		t.Error("slot still present after remove")
	}
}

func TestProcessBatch(t *testing.T) {
	e := New(8)
	e.AddSlot("double", doubleHost{}, engineConfig())
	e.AddSlot("fail", failHost{}, engineConfig())

	tasks := []Task{
		{SlotID: "double", Channels: onesBlock(2, 8)},
		{SlotID: "fail", Channels: onesBlock(2, 8)},
		{SlotID: "absent", Channels: onesBlock(2, 8)},
	}

	results := e.ProcessBatch(tasks)

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	assertAllSamples(t, results["double"], 2.0)
	// Per-task failure degrades to that task's input only.
	assertAllSamples(t, results["fail"], 1.0)
	assertAllSamples(t, results["absent"], 1.0)
}

func TestProcessBatchManyTasks(t *testing.T) {
	// More tasks than pool workers; all must complete.
	e := New(128)
	for i := 0; i < 64; i++ {
		e.AddSlot(slotName(i), doubleHost{}, engineConfig())
	}

	tasks := make([]Task, 64)
	for i := range tasks {
		tasks[i] = Task{SlotID: slotName(i), Channels: onesBlock(1, 8)}
	}

	results := e.ProcessBatch(tasks)
	if len(results) != 64 {
		t.Fatalf("expected 64 results, got %d", len(results))
	}
	for id, out := range results {
		if out[0][0] != 2.0 {
			t.Errorf("slot %s: sample = %f, want 2", id, out[0][0])
		}
	}
}

func slotName(i int) string {
	return string(rune('a'+i%26)) + string(rune('0'+i/26))
}

func TestProcessChainOrder(t *testing.T) {
	e := New(8)

	var mu sync.Mutex
	var trace []string
	e.AddSlot("first", orderHost{&mu, &trace, "first"}, engineConfig())
	e.AddSlot("second", orderHost{&mu, &trace, "second"}, engineConfig())
	e.AddSlot("third", orderHost{&mu, &trace, "third"}, engineConfig())

	e.ProcessChain([]string{"first", "second", "third"}, onesBlock(1, 4))

	want := []string{"first", "second", "third"}
	if len(trace) != len(want) {
		t.Fatalf("trace length = %d, want %d", len(trace), len(want))
	}
	for i, tag := range want {
		if trace[i] != tag {
			t.Errorf("trace[%d] = %s, want %s", i, trace[i], tag)
		}
	}
}

func TestProcessChainComposes(t *testing.T) {
	e := New(8)
	e.AddSlot("g1", doubleHost{}, engineConfig())
	e.AddSlot("g2", doubleHost{}, engineConfig())

	out := e.ProcessChain([]string{"g1", "g2"}, onesBlock(1, 4))
	assertAllSamples(t, out, 4.0)
}

func TestStatsAggregation(t *testing.T) {
	e := New(8)
	e.AddSlot("a", doubleHost{}, engineConfig())
	e.AddSlot("b", doubleHost{}, engineConfig())

	e.Process("a", onesBlock(1, 8))
	e.Process("a", onesBlock(1, 8))
	e.Process("b", onesBlock(1, 8))

	stats := e.Stats()
	if stats.Instances != 2 {
		t.Errorf("instances = %d, want 2", stats.Instances)
	}
	if stats.TotalBlocks != 3 {
		t.Errorf("total blocks = %d, want 3", stats.TotalBlocks)
	}
	if got := stats.Slots["a"].BlocksProcessed; got != 2 {
		t.Errorf("slot a blocks = %d, want 2", got)
	}
	if got := stats.Slots["b"].BlocksProcessed; got != 1 {
		t.Errorf("slot b blocks = %d, want 1", got)
	}
}

func TestStopReleasesSlots(t *testing.T) {
	e := New(8)
	e.AddSlot("a", doubleHost{}, engineConfig())
	e.Stop()

	if e.HasSlot("a") {
		t.Error("slot survived Stop")
	}

	// Processing degrades to pass-through after stop.
	out := e.Process("a", onesBlock(1, 4))
	assertAllSamples(t, out, 1.0)

	// Batch returns inputs unchanged after stop.
	results := e.ProcessBatch([]Task{{SlotID: "a", Channels: onesBlock(1, 4)}})
	assertAllSamples(t, results["a"], 1.0)
}

func TestBuiltinLoader(t *testing.T) {
	loader := NewBuiltinLoader()

	if got := len(loader.List()); got != 3 {
		t.Fatalf("expected 3 builtin plugins, got %d", got)
	}

	host, info, err := loader.Load(BuiltinGain, 44100)
	if err != nil {
		t.Fatalf("load gain: %v", err)
	}
	if info.Name != "Gain" {
		t.Errorf("info name = %s, want Gain", info.Name)
	}

	ph, ok := host.(ParamHost)
	if !ok {
		t.Fatal("gain host should expose parameters")
	}
	if err := ph.SetParameter("gain", 2.0); err != nil {
		t.Fatalf("set gain: %v", err)
	}

	out, err := host.Process(onesBlock(2, 4), 44100)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	assertAllSamples(t, out, 2.0)

	if _, _, err := loader.Load("builtin:nonsense", 44100); err == nil {
		t.Error("expected error for unknown plugin path")
	}
}

func TestBuiltinLimiter(t *testing.T) {
	loader := NewBuiltinLoader()
	host, _, err := loader.Load(BuiltinLimiter, 44100)
	if err != nil {
		t.Fatalf("load limiter: %v", err)
	}

	loud := [][]float32{{2.0, -2.0}}
	out, err := host.Process(loud, 44100)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if out[0][0] != 0.99 || out[0][1] != -0.99 {
		t.Errorf("limiter output = %v, want clipped to 0.99", out[0])
	}
}
