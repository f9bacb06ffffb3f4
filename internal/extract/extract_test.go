package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/MeKo-Tech/trackscan/internal/ocr"
	"github.com/MeKo-Tech/trackscan/internal/parser"
	"github.com/MeKo-Tech/trackscan/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var trackNumberPattern = regexp.MustCompile(`^[0-9]{14}$`)

func newProcessor(t *testing.T, engine ocr.Engine) *Processor {
	t.Helper()
	adapter, err := ocr.NewAdapter(engine)
	require.NoError(t, err)
	p, err := NewProcessor(adapter, nil)
	require.NoError(t, err)
	return p
}

func TestProcessImage(t *testing.T) {
	engine := testutil.NewScriptedEngine()
	tests := []struct {
		name  string
		data  []byte
		want  string
		stage string
		noMat bool
	}{
		{
			name: "colon value",
			data: engine.AddText("DHL", "Sendungsnummer: 12345678901234"),
			want: "12345678901234",
		},
		{
			name: "continuation line",
			data: engine.AddText("Sendungsnummer 12345678901234", "12345678901234"),
			want: "12345678901234",
		},
		{
			name:  "wrong length",
			data:  engine.AddText("Sendungsnummer: 1234"),
			stage: StageParse,
			noMat: true,
		},
		{
			name:  "keyword missing",
			data:  engine.AddText("Absender: Beispiel GmbH"),
			stage: StageParse,
			noMat: true,
		},
		{
			name:  "short numeric continuation fails validation",
			data:  engine.AddText("Sendungsnummer", "123456789"),
			stage: StageValidate,
		},
		{
			name:  "undecodable bytes",
			data:  []byte("not an image"),
			stage: StageDecode,
		},
		{
			name:  "engine failure",
			data:  engine.Add(testutil.Scenario{Err: errors.New("dimension rejected")}),
			stage: StageRecognize,
		},
		{
			name:  "engine panic",
			data:  engine.Add(testutil.Scenario{Panic: true}),
			stage: StagePanic,
		},
	}

	p := newProcessor(t, engine)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := p.ProcessImage(context.Background(), ImageInput{ID: tt.name, Bytes: tt.data})
			assert.Equal(t, tt.name, out.ID)
			if tt.want != "" {
				require.True(t, out.OK(), "unexpected failure: %v", out.Err)
				assert.NoError(t, out.Err)
				assert.Equal(t, tt.name, out.Record.ID)
				assert.Equal(t, tt.want, out.Record.TrackNumber)
				assert.NotNil(t, out.Record.Rect)
				return
			}
			assert.False(t, out.OK())
			require.Error(t, out.Err)
			assert.Equal(t, tt.stage, out.Stage)
			assert.Equal(t, tt.noMat, errors.Is(out.Err, ErrNoMatch))
		})
	}
}

func TestProcessImageDecodeErrorType(t *testing.T) {
	p := newProcessor(t, testutil.NewScriptedEngine())
	out := p.ProcessImage(context.Background(), ImageInput{ID: "x", Bytes: nil})
	var de *ocr.DecodeError
	assert.ErrorAs(t, out.Err, &de)

	engine := testutil.NewScriptedEngine()
	data := engine.Add(testutil.Scenario{Err: errors.New("boom")})
	out = newProcessor(t, engine).ProcessImage(context.Background(), ImageInput{ID: "y", Bytes: data})
	var re *ocr.RecognitionError
	assert.ErrorAs(t, out.Err, &re)
}

func TestProcessImageLogsWithContextLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx := WithLogger(context.Background(), logger.With("request_id", "req-1"))

	p := newProcessor(t, testutil.NewScriptedEngine())
	p.ProcessImage(ctx, ImageInput{ID: "broken.png", Bytes: []byte("xx")})

	assert.Contains(t, buf.String(), `"request_id":"req-1"`)
	assert.Contains(t, buf.String(), `"id":"broken.png"`)
	assert.Contains(t, buf.String(), `"stage":"decode"`)
}

func TestNewProcessorAndCoordinatorValidation(t *testing.T) {
	_, err := NewProcessor(nil, nil)
	require.Error(t, err)

	_, err = NewCoordinator(nil, Options{})
	require.Error(t, err)

	p := newProcessor(t, testutil.NewScriptedEngine())
	assert.Equal(t, parser.DefaultKeyword, p.Parser().Keyword())
	c, err := NewCoordinator(p, Options{})
	require.NoError(t, err)
	assert.Positive(t, c.Workers())
	assert.Same(t, p, c.Processor())
}

func TestExtractBatchEmpty(t *testing.T) {
	c, err := NewCoordinator(newProcessor(t, testutil.NewScriptedEngine()), Options{Workers: 4})
	require.NoError(t, err)

	res := c.ExtractBatch(context.Background(), nil)
	assert.NotNil(t, res.Success)
	assert.NotNil(t, res.Fail)
	assert.Zero(t, res.Len())
}

// mixedBatch builds n inputs cycling through successes, parse failures,
// decode failures, engine errors and panics.
func mixedBatch(engine *testutil.ScriptedEngine, n int) []ImageInput {
	inputs := make([]ImageInput, 0, n)
	for i := range n {
		id := fmt.Sprintf("img-%03d", i)
		var data []byte
		switch i % 6 {
		case 0, 1:
			data = engine.AddText("Paket", fmt.Sprintf("Sendungsnummer: %014d", i))
		case 2:
			data = engine.AddText("Sendungsnummer", fmt.Sprintf("%014d", i*7))
		case 3:
			data = engine.AddText("Sendungsnummer: 42")
		case 4:
			data = []byte("garbage")
		case 5:
			if i%12 == 5 {
				data = engine.Add(testutil.Scenario{Panic: true})
			} else {
				data = engine.Add(testutil.Scenario{Err: errors.New("engine error")})
			}
		}
		inputs = append(inputs, ImageInput{ID: id, Bytes: data})
	}
	return inputs
}

func partition(res BatchResult) ([]string, []string) {
	succ := make([]string, 0, len(res.Success))
	for _, r := range res.Success {
		succ = append(succ, r.ID)
	}
	fail := append([]string(nil), res.Fail...)
	sort.Strings(succ)
	sort.Strings(fail)
	return succ, fail
}

func TestExtractBatchPartitionCompleteness(t *testing.T) {
	engine := testutil.NewScriptedEngine()
	inputs := mixedBatch(engine, 60)
	c, err := NewCoordinator(newProcessor(t, engine), Options{Workers: 4})
	require.NoError(t, err)

	res := c.ExtractBatch(context.Background(), inputs)
	require.Equal(t, len(inputs), res.Len())

	seen := make(map[string]int, len(inputs))
	for _, r := range res.Success {
		seen[r.ID]++
		assert.Regexp(t, trackNumberPattern, r.TrackNumber)
	}
	for _, id := range res.Fail {
		seen[id]++
	}
	for _, in := range inputs {
		assert.Equal(t, 1, seen[in.ID], "id %s must appear exactly once", in.ID)
	}
	assert.Len(t, res.Success, 30)
	assert.Len(t, res.Fail, 30)
}

func TestExtractBatchWorkerCountEquivalence(t *testing.T) {
	engine := testutil.NewScriptedEngine()
	inputs := mixedBatch(engine, 500)
	p := newProcessor(t, engine)

	single, err := NewCoordinator(p, Options{Workers: 1})
	require.NoError(t, err)
	pooled, err := NewCoordinator(p, Options{Workers: 8})
	require.NoError(t, err)

	s1, f1 := partition(single.ExtractBatch(context.Background(), inputs))
	s8, f8 := partition(pooled.ExtractBatch(context.Background(), inputs))
	assert.Equal(t, s1, s8)
	assert.Equal(t, f1, f8)
	assert.Len(t, s1, 251)
}

func TestExtractBatchPanicIsolation(t *testing.T) {
	engine := testutil.NewScriptedEngine()
	inputs := []ImageInput{
		{ID: "ok-1", Bytes: engine.AddText("Sendungsnummer: 11111111111111")},
		{ID: "boom", Bytes: engine.Add(testutil.Scenario{Panic: true})},
		{ID: "ok-2", Bytes: engine.AddText("Sendungsnummer: 22222222222222")},
	}
	c, err := NewCoordinator(newProcessor(t, engine), Options{Workers: 2})
	require.NoError(t, err)

	res := c.ExtractBatch(context.Background(), inputs)
	succ, fail := partition(res)
	assert.Equal(t, []string{"ok-1", "ok-2"}, succ)
	assert.Equal(t, []string{"boom"}, fail)
}

func TestExtractBatchSlowImageDoesNotBlockOthers(t *testing.T) {
	engine := testutil.NewScriptedEngine()
	inputs := []ImageInput{{ID: "slow", Bytes: engine.Add(testutil.Scenario{
		Delay: 300 * time.Millisecond,
		Lines: testutil.LinesFromText("Sendungsnummer: 00000000000000"),
	})}}
	for i := range 20 {
		inputs = append(inputs, ImageInput{
			ID:    fmt.Sprintf("fast-%d", i),
			Bytes: engine.AddText(fmt.Sprintf("Sendungsnummer: %014d", i)),
		})
	}

	var mu sync.Mutex
	var order []int
	c, err := NewCoordinator(newProcessor(t, engine), Options{
		Workers: 4,
		Progress: func(done, total int) {
			mu.Lock()
			order = append(order, done)
			mu.Unlock()
			assert.Equal(t, 21, total)
		},
	})
	require.NoError(t, err)

	res := c.ExtractBatch(context.Background(), inputs)
	require.Len(t, res.Success, 21)
	assert.Equal(t, "slow", res.Success[len(res.Success)-1].ID, "slow image completes last")
	require.Len(t, order, 21)
	for i, d := range order {
		assert.Equal(t, i+1, d)
	}
}

func TestExtractBatchDuplicateIDs(t *testing.T) {
	engine := testutil.NewScriptedEngine()
	data := engine.AddText("Sendungsnummer: 12345678901234")
	c, err := NewCoordinator(newProcessor(t, engine), Options{Workers: 2})
	require.NoError(t, err)

	res := c.ExtractBatch(context.Background(), []ImageInput{{ID: "a", Bytes: data}, {ID: "a", Bytes: data}})
	assert.Len(t, res.Success, 2)
	assert.Equal(t, int64(2), engine.Calls())
}

func TestWithProgress(t *testing.T) {
	engine := testutil.NewScriptedEngine()
	c, err := NewCoordinator(newProcessor(t, engine), Options{Workers: 2})
	require.NoError(t, err)

	calls := 0
	withProgress := c.WithProgress(func(done, total int) { calls++ })
	withProgress.ExtractBatch(context.Background(), []ImageInput{{ID: "a", Bytes: []byte("x")}})
	assert.Equal(t, 1, calls)

	c.ExtractBatch(context.Background(), []ImageInput{{ID: "b", Bytes: []byte("x")}})
	assert.Equal(t, 1, calls, "original coordinator has no progress callback")
}

func TestLoggerDefault(t *testing.T) {
	assert.Same(t, slog.Default(), Logger(context.Background()))
}
