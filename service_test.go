package artstyle

import (
	"context"
	"image"
	"image/color"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingExtractor counts extractions, optionally blocks until gate closes,
// and fails every extraction while err is set.
type countingExtractor struct {
	FeatureExtractor
	calls atomic.Int32
	gate  chan struct{}
	err   error
}

func newCountingExtractor() *countingExtractor {
	return &countingExtractor{FeatureExtractor: NewHistogramExtractor()}
}

func (c *countingExtractor) Extract(img image.Image) (Vector, error) {
	if c.gate != nil {
		<-c.gate
	}
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return c.FeatureExtractor.Extract(img)
}

type mapCache struct {
	mu sync.Mutex
	m  map[string]ClassificationResult
}

func (c *mapCache) Key(prefix, value string) string { return prefix + ":" + value }

func (c *mapCache) Get(_ context.Context, key string, dest any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.m[key]
	if ok {
		*dest.(*ClassificationResult) = r
	}
	return ok
}

func (c *mapCache) Set(_ context.Context, key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.m == nil {
		c.m = make(map[string]ClassificationResult)
	}
	c.m[key] = value.(ClassificationResult)
}

// styleCorpus writes a two-label corpus: flat red "madhubani", black and white
// stripes "warli".
func styleCorpus(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeCorpus(t, root, map[string]map[string]image.Image{
		"madhubani painting": {
			"1.png": solidImage(24, 24, red),
			"2.png": solidImage(30, 20, color.RGBA{R: 200, G: 40, B: 40, A: 255}),
		},
		"warli painting": {
			"1.png": stripeImage(24, 24, 3, black, white, true),
			"2.png": stripeImage(24, 24, 4, black, white, false),
		},
	})
	return root
}

func newTestService(t *testing.T, cfg Config) *Service {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = discardLogger()
	}
	if cfg.Features == nil {
		cfg.Features = NewHistogramExtractor()
	}
	s, err := New(cfg)
	require.NoError(t, err)
	return s
}

func TestNew_InvalidStrategy(t *testing.T) {
	t.Parallel()

	_, err := New(Config{Strategy: "nearest", Logger: discardLogger()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown strategy")
}

func TestService_ClassifyCentroid(t *testing.T) {
	t.Parallel()

	s := newTestService(t, Config{CorpusRoot: styleCorpus(t)})
	res, err := s.Classify(context.Background(), encodePNG(t, stripeImage(24, 24, 3, black, white, true)), "")
	require.NoError(t, err)

	assert.Equal(t, "warli", res.PredictedLabel)
	assert.Greater(t, res.Confidence, 0.5)
	assert.Equal(t, "cvhsv-embeddings-knn", res.Method)
	assert.Equal(t, MethodCVHSV, res.ExtractionMethod)
	assert.Equal(t, map[string]int{"madhubani": 2, "warli": 2}, res.CorpusCounts)
	assert.InDelta(t, 1, res.Scores["madhubani"]+res.Scores["warli"], 1e-9)
	assert.False(t, res.Degraded())
}

func TestService_Compare(t *testing.T) {
	t.Parallel()

	s := newTestService(t, Config{CorpusRoot: styleCorpus(t)})
	res, err := s.Compare(context.Background(), encodePNG(t, solidImage(24, 24, red)), "")
	require.NoError(t, err)

	assert.Equal(t, "madhubani", res.PredictedLabel)
	assert.Equal(t, MethodIDComparison, res.Method)
	assert.InDelta(t, 0.85, res.Confidence, 1e-6)
}

func TestService_DegradesWithoutCorpus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		filename   string
		wantMethod string
		wantLabel  string
		wantConf   float64
	}{
		{name: "filename hint", filename: "my_warli_art.jpg", wantMethod: MethodIDFilename, wantLabel: "warli", wantConf: 0.85},
		{name: "no hint", filename: "upload.jpg", wantMethod: MethodIDRandom, wantLabel: "madhubani", wantConf: 0.72},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			s := newTestService(t, Config{
				CorpusRoot: t.TempDir(),
				RandIntN:   func(int) int { return 0 },
			})
			for _, strategy := range []Strategy{StrategyCentroid, StrategyComparison} {
				res, err := s.ClassifyWith(context.Background(), strategy, makeJPEG(8, 8), tc.filename)
				require.NoError(t, err)
				assert.Equal(t, tc.wantMethod, res.Method, strategy)
				assert.Equal(t, tc.wantLabel, res.PredictedLabel, strategy)
				assert.InDelta(t, tc.wantConf, res.Confidence, 1e-12)
				assert.Equal(t, MethodNone, res.ExtractionMethod)
				assert.Equal(t, map[string]int{"madhubani": 0, "pithora": 0, "warli": 0}, res.CorpusCounts, "counts keep their shape without an index")
			}
		})
	}
}

func TestService_DecodeErrorSurfaces(t *testing.T) {
	t.Parallel()

	var events atomic.Int32
	s := newTestService(t, Config{
		CorpusRoot:       styleCorpus(t),
		OnClassification: func(ClassificationEvent) { events.Add(1) },
	})
	for _, strategy := range []Strategy{StrategyCentroid, StrategyComparison} {
		res, err := s.ClassifyWith(context.Background(), strategy, []byte("GIF89a-but-not-really"), "warli.gif")
		assert.True(t, errors.Is(err, ErrImageDecode), "got %v", err)
		assert.Empty(t, res.PredictedLabel)
	}
	assert.Zero(t, events.Load())
}

func TestService_IndexBuiltOnce(t *testing.T) {
	t.Parallel()

	ext := newCountingExtractor()
	s := newTestService(t, Config{CorpusRoot: styleCorpus(t), Features: ext})

	const callers = 8
	got := make([]*ReferenceIndex, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			idx, err := s.Index(context.Background())
			assert.NoError(t, err)
			got[i] = idx
		}()
	}
	wg.Wait()

	for _, idx := range got {
		assert.Same(t, got[0], idx)
	}
	assert.EqualValues(t, 4, ext.calls.Load(), "one extraction per corpus image")

	_, err := s.Classify(context.Background(), makeJPEG(8, 8), "")
	require.NoError(t, err)
	assert.EqualValues(t, 5, ext.calls.Load(), "classification reuses the index")
}

func TestService_WaiterTimeoutDegrades(t *testing.T) {
	t.Parallel()

	ext := newCountingExtractor()
	ext.gate = make(chan struct{})
	s := newTestService(t, Config{CorpusRoot: styleCorpus(t), Features: ext, RandIntN: func(int) int { return 0 }})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := s.Index(ctx)
	assert.True(t, errors.Is(err, ErrDatasetUnavailable), "got %v", err)

	// The build keeps running for later callers.
	close(ext.gate)
	idx, err := s.Index(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, idx.Len())
}

func TestService_PersistedIndexReused(t *testing.T) {
	t.Parallel()

	root, dir := styleCorpus(t), t.TempDir()

	first := newTestService(t, Config{CorpusRoot: root, IndexDir: dir})
	require.NoError(t, first.Warm(context.Background()))

	ext := newCountingExtractor()
	second := newTestService(t, Config{CorpusRoot: root, IndexDir: dir, Features: ext})
	idx, err := second.Index(context.Background())
	require.NoError(t, err)
	assert.Zero(t, ext.calls.Load(), "loaded, not rebuilt")
	assert.Equal(t, 4, idx.Len())

	rebuilt, err := second.Rebuild(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 4, ext.calls.Load())
	assert.NotSame(t, idx, rebuilt)

	cur, err := second.Index(context.Background())
	require.NoError(t, err)
	assert.Same(t, rebuilt, cur)
}

func TestService_IncompatiblePersistedIndexRebuilt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		method Method
	}{
		{name: "other vector width", method: MethodCVHSV},
		{name: "other extraction method", method: MethodMobileNetV2},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			stale, err := NewReferenceIndex(tc.method, 3, []ReferenceSample{
				{Label: "warli", Vector: Vector{1, 0, 0}},
				{Label: "madhubani", Vector: Vector{0, 0, 1}},
			}, map[string]int{"warli": 1, "madhubani": 1})
			require.NoError(t, err)
			dir := t.TempDir()
			require.NoError(t, SaveIndex(dir, stale))

			ext := newCountingExtractor()
			s := newTestService(t, Config{CorpusRoot: styleCorpus(t), IndexDir: dir, Features: ext})
			res, err := s.Classify(context.Background(), makeJPEG(8, 8), "")
			require.NoError(t, err)

			assert.Equal(t, CentroidMethodID(MethodCVHSV), res.Method)
			assert.False(t, res.Degraded())
			assert.EqualValues(t, 5, ext.calls.Load(), "corpus rebuilt, then the query extracted")

			meta, err := ReadIndexMeta(dir)
			require.NoError(t, err)
			assert.Equal(t, MethodCVHSV, meta.Method)
			assert.Equal(t, histogramDim, meta.Dim)
			assert.Equal(t, 4, meta.Count, "persisted copy replaced")
		})
	}
}

func TestService_FailedBuildRemembered(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		elapsed   time.Duration
		wantCalls int32
	}{
		{name: "within retry interval", elapsed: 30 * time.Second, wantCalls: 4},
		{name: "after retry interval", elapsed: 2 * time.Minute, wantCalls: 8},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ext := newCountingExtractor()
			ext.err = errors.New("corrupt reference image")
			s := newTestService(t, Config{
				CorpusRoot:         styleCorpus(t),
				Features:           ext,
				BuildRetryInterval: time.Minute,
				RandIntN:           func(int) int { return 0 },
			})
			start := time.Now()
			s.now = func() time.Time { return start }

			res, err := s.Classify(context.Background(), makeJPEG(8, 8), "")
			require.NoError(t, err)
			assert.Equal(t, MethodIDRandom, res.Method)
			assert.EqualValues(t, 4, ext.calls.Load(), "every corpus image tried once")

			s.now = func() time.Time { return start.Add(tc.elapsed) }
			res, err = s.Classify(context.Background(), makeJPEG(8, 8), "")
			require.NoError(t, err)
			assert.Equal(t, MethodIDRandom, res.Method)
			assert.Equal(t, tc.wantCalls, ext.calls.Load())

			_, err = s.Index(context.Background())
			assert.True(t, errors.Is(err, ErrDatasetUnavailable), "got %v", err)
		})
	}
}

func TestService_RebuildClearsFailedBuild(t *testing.T) {
	t.Parallel()

	ext := newCountingExtractor()
	ext.err = errors.New("corrupt reference image")
	s := newTestService(t, Config{CorpusRoot: styleCorpus(t), Features: ext})

	_, err := s.Index(context.Background())
	assert.True(t, errors.Is(err, ErrDatasetUnavailable), "got %v", err)
	_, err = s.Index(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index build failed")
	assert.EqualValues(t, 4, ext.calls.Load())

	ext.err = nil
	idx, err := s.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, idx.Len())
	assert.EqualValues(t, 8, ext.calls.Load())

	cur, err := s.Index(context.Background())
	require.NoError(t, err)
	assert.Same(t, idx, cur)
}

func TestService_Cache(t *testing.T) {
	t.Parallel()

	cache := &mapCache{}
	var mu sync.Mutex
	var events []ClassificationEvent
	s := newTestService(t, Config{
		CorpusRoot: styleCorpus(t),
		Cache:      cache,
		OnClassification: func(e ClassificationEvent) {
			mu.Lock()
			defer mu.Unlock()
			events = append(events, e)
		},
	})

	img := encodePNG(t, solidImage(24, 24, red))
	first, err := s.Classify(context.Background(), img, "a.png")
	require.NoError(t, err)
	second, err := s.Classify(context.Background(), img, "a.png")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 2)
	assert.False(t, events[0].Cached)
	assert.True(t, events[1].Cached)
	assert.NotEqual(t, events[0].ID, events[1].ID)
	assert.Len(t, cache.m, 1)
}

func TestService_DegradedResultsNotCached(t *testing.T) {
	t.Parallel()

	cache := &mapCache{}
	s := newTestService(t, Config{CorpusRoot: t.TempDir(), Cache: cache})
	res, err := s.Classify(context.Background(), makeJPEG(8, 8), "warli.jpg")
	require.NoError(t, err)
	assert.True(t, res.Degraded())
	assert.Empty(t, cache.m)
}

func TestService_InfoAndSuggestions(t *testing.T) {
	t.Parallel()

	s := newTestService(t, Config{CorpusRoot: styleCorpus(t)})

	info := s.Info()
	assert.False(t, info.IndexLoaded)
	assert.Equal(t, MethodCVHSV, info.ExtractionMethod)
	assert.Equal(t, 528, info.Dim)
	assert.Equal(t, "cvhsv-embeddings-knn", info.ScoringMethod)
	assert.Equal(t, []string{"madhubani", "pithora", "warli"}, info.Labels)

	require.NoError(t, s.Warm(context.Background()))
	info = s.Info()
	assert.True(t, info.IndexLoaded)
	assert.Equal(t, []string{"madhubani", "warli"}, info.Labels)
	assert.Equal(t, 4, info.Vectors)
	require.NotNil(t, info.BuiltAt)

	assert.Equal(t, DefaultManifest().Suggestions("warli"), s.Suggestions("warli"))
	assert.Equal(t, GenericSuggestions, s.Suggestions("abstract"))
}
