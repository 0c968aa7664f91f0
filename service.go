package artstyle

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"image"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"
)

const cachePrefix = "artstyle_cls"

// Service classifies artwork against the reference corpus. The reference index
// is built or loaded lazily on first use, at most once per process. A Service
// is safe for concurrent use.
type Service struct {
	cfg        Config
	extractor  FeatureExtractor
	heuristic  FilenameHeuristic
	scorer     CentroidScorer
	comparison *DatasetComparisonClassifier

	group singleflight.Group
	index atomic.Pointer[ReferenceIndex]

	failMu sync.Mutex
	failed map[Method]buildFailure
	now    func() time.Time
}

// buildFailure is the last failed build of one extraction method.
type buildFailure struct {
	err error
	at  time.Time
}

// New validates cfg and selects the feature extractor. No corpus I/O happens
// until the index is first needed.
func New(cfg Config) (*Service, error) {
	cfg.defaults()
	if _, err := ParseStrategy(string(cfg.Strategy)); err != nil {
		return nil, err
	}

	ext := cfg.Features
	if ext == nil {
		ext = NewExtractor(cfg.Extractor, cfg.Logger)
	}

	var heuristic FilenameHeuristic
	if cfg.Manifest != nil {
		heuristic.Keywords = cfg.Manifest.Keywords()
	}

	s := &Service{
		cfg:       cfg,
		extractor: ext,
		heuristic: heuristic,
		scorer:    CentroidScorer{Temperature: cfg.Temperature},
		failed:    make(map[Method]buildFailure),
		now:       time.Now,
	}
	s.comparison = &DatasetComparisonClassifier{
		Index:     s,
		Extractor: ext,
		Filename:  heuristic,
		Labels:    cfg.manifest().Labels(),
		MaxPixels: cfg.MaxPixels,
		RandIntN:  cfg.RandIntN,
		Logger:    cfg.Logger,
	}
	return s, nil
}

// Extractor returns the feature extractor selected at construction.
func (s *Service) Extractor() FeatureExtractor { return s.extractor }

// Close releases extractor resources.
func (s *Service) Close() error {
	if c, ok := s.extractor.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Index returns the reference index, loading or building it on first use.
// Concurrent callers share one build, which is not cancelled by any single
// caller. A caller whose ctx ends first gets ErrDatasetUnavailable. A failed
// build is reported again without touching the corpus until
// Config.BuildRetryInterval has passed.
func (s *Service) Index(ctx context.Context) (*ReferenceIndex, error) {
	if idx := s.index.Load(); idx != nil {
		return idx, nil
	}
	if err := s.recentFailure(); err != nil {
		return nil, err
	}
	return s.await(ctx, "index:"+string(s.extractor.Method()), false)
}

// Rebuild builds the index from the corpus, ignoring any persisted copy and
// any remembered failure, and replaces the active one.
func (s *Service) Rebuild(ctx context.Context) (*ReferenceIndex, error) {
	return s.await(ctx, "rebuild:"+string(s.extractor.Method()), true)
}

func (s *Service) recentFailure() error {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	f, ok := s.failed[s.extractor.Method()]
	if !ok {
		return nil
	}
	if age := s.now().Sub(f.at); age < s.cfg.BuildRetryInterval {
		return errors.Wrapf(f.err, "index build failed %s ago", age.Round(time.Millisecond))
	}
	return nil
}

func (s *Service) recordBuild(err error) {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	method := s.extractor.Method()
	if err == nil {
		delete(s.failed, method)
		return
	}
	s.failed[method] = buildFailure{err: err, at: s.now()}
}

// Warm loads or builds the index ahead of the first classification.
func (s *Service) Warm(ctx context.Context) error {
	_, err := s.Index(ctx)
	return err
}

func (s *Service) await(ctx context.Context, key string, force bool) (*ReferenceIndex, error) {
	buildCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (any, error) {
		idx, err := s.loadOrBuild(buildCtx, force)
		s.recordBuild(err)
		return idx, err
	})
	select {
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*ReferenceIndex), nil
	case <-ctx.Done():
		return nil, errors.Wrapf(ErrDatasetUnavailable, "waiting for index: %v", ctx.Err())
	}
}

func (s *Service) loadOrBuild(ctx context.Context, force bool) (*ReferenceIndex, error) {
	log := s.cfg.Logger
	method := s.extractor.Method()

	if !force {
		if idx := s.index.Load(); idx != nil {
			return idx, nil
		}
		if s.cfg.IndexDir != "" {
			idx, err := LoadIndex(s.cfg.IndexDir, method, s.extractor.Dim())
			switch {
			case err == nil:
				log.Info("artstyle: index loaded", "dir", s.cfg.IndexDir, "method", method, "vectors", idx.Len())
				s.index.Store(idx)
				return idx, nil
			case IsCacheMiss(err):
				log.Info("artstyle: persisted index unusable, rebuilding", "dir", s.cfg.IndexDir, "reason", err.Error())
			default:
				log.Warn("artstyle: persisted index unreadable, rebuilding", "dir", s.cfg.IndexDir, "error", err.Error())
			}
		}
	}

	idx, err := BuildIndex(ctx, s.extractor, BuildOptions{
		Root:               s.cfg.CorpusRoot,
		Folders:            s.cfg.folders(),
		MaxSamplesPerLabel: s.cfg.MaxSamplesPerLabel,
		Workers:            s.cfg.Workers,
		DedupThreshold:     s.cfg.DedupThreshold,
		MaxPixels:          s.cfg.MaxPixels,
		Logger:             log,
	})
	if err != nil {
		return nil, err
	}

	if s.cfg.IndexDir != "" {
		if err := SaveIndex(s.cfg.IndexDir, idx); err != nil {
			log.Warn("artstyle: persist index failed", "dir", s.cfg.IndexDir, "error", err.Error())
		}
	}
	s.index.Store(idx)
	return idx, nil
}

// Classify classifies image bytes with the configured strategy. filename is an
// optional hint. Only ErrImageDecode is returned; every other failure yields a
// degraded result.
func (s *Service) Classify(ctx context.Context, data []byte, filename string) (ClassificationResult, error) {
	return s.ClassifyWith(ctx, s.cfg.Strategy, data, filename)
}

// Compare classifies with the dataset comparison strategy.
func (s *Service) Compare(ctx context.Context, data []byte, filename string) (ClassificationResult, error) {
	return s.ClassifyWith(ctx, StrategyComparison, data, filename)
}

// ClassifyWith classifies with an explicit strategy. An empty strategy means
// the configured one.
func (s *Service) ClassifyWith(ctx context.Context, strategy Strategy, data []byte, filename string) (ClassificationResult, error) {
	if strategy == "" {
		strategy = s.cfg.Strategy
	}
	if _, err := ParseStrategy(string(strategy)); err != nil {
		return ClassificationResult{}, err
	}
	start := time.Now()

	var cacheKey string
	if s.cfg.Cache != nil {
		sum := sha256.Sum256(data)
		cacheKey = s.cfg.Cache.Key(cachePrefix, string(strategy)+":"+hex.EncodeToString(sum[:])+":"+filename)
		var cached ClassificationResult
		if s.cfg.Cache.Get(ctx, cacheKey, &cached) {
			s.emit(filename, strategy, cached, start, true)
			return cached, nil
		}
	}

	img, err := DecodeImage(data, s.cfg.MaxPixels)
	if err != nil {
		s.cfg.Logger.Debug("artstyle: rejecting undecodable image", "filename", filename, "bytes", len(data), "error", err.Error())
		return ClassificationResult{}, err
	}

	var res ClassificationResult
	switch strategy {
	case StrategyComparison:
		res = s.comparison.classifyImage(ctx, img, filename)
	default:
		res = s.classifyCentroid(ctx, img, filename)
	}

	if s.cfg.Cache != nil && !res.Degraded() {
		s.cfg.Cache.Set(ctx, cacheKey, res)
	}
	s.emit(filename, strategy, res, start, false)
	return res, nil
}

func (s *Service) classifyCentroid(ctx context.Context, img image.Image, filename string) ClassificationResult {
	log := s.cfg.Logger

	idx, err := s.Index(ctx)
	if err != nil {
		log.Warn("artstyle: reference index unavailable, degrading", "filename", filename, "error", err.Error())
		return s.degrade(nil, filename)
	}

	vec, err := s.extractor.Extract(img)
	if err != nil {
		log.Warn("artstyle: feature extraction failed, degrading", "filename", filename, "error", err.Error())
		return s.degrade(idx, filename)
	}

	scores, err := s.scorer.Score(vec, idx)
	if err != nil {
		log.Warn("artstyle: centroid scoring failed, degrading", "filename", filename, "error", err.Error())
		return s.degrade(idx, filename)
	}
	scores = blendFilename(scores, s.heuristic.ScoreAll(filename, idx.labels), s.cfg.FilenameWeight)

	label, confidence := s.scorer.Predict(scores)
	return ClassificationResult{
		PredictedLabel:   label,
		Confidence:       confidence,
		Scores:           scores,
		Method:           CentroidMethodID(idx.Method()),
		ExtractionMethod: idx.Method(),
		CorpusCounts:     idx.CorpusCounts(),
	}
}

func (s *Service) degrade(idx *ReferenceIndex, filename string) ClassificationResult {
	labels, counts := s.cfg.manifest().Labels(), map[string]int{}
	if idx != nil {
		labels, counts = idx.Labels(), idx.CorpusCounts()
	}
	return degrade(s.heuristic, filename, labels, counts, s.cfg.RandIntN)
}

func (s *Service) emit(filename string, strategy Strategy, res ClassificationResult, start time.Time, cached bool) {
	if s.cfg.OnClassification == nil {
		return
	}
	s.cfg.OnClassification(ClassificationEvent{
		ID:       uuid.NewString(),
		Filename: filename,
		Strategy: strategy,
		Result:   res,
		Duration: time.Since(start),
		At:       start.UTC(),
		Cached:   cached,
	})
}

// ModelInfo describes the active extractor and reference index.
type ModelInfo struct {
	ExtractionMethod Method         `json:"extraction_method"`
	Dim              int            `json:"dim"`
	Strategy         Strategy       `json:"strategy"`
	ScoringMethod    string         `json:"scoring_method"`
	Labels           []string       `json:"labels"`
	IndexLoaded      bool           `json:"index_loaded"`
	Vectors          int            `json:"vectors"`
	SampleCounts     map[string]int `json:"sample_counts,omitempty"`
	CorpusCounts     map[string]int `json:"corpus_counts,omitempty"`
	BuiltAt          *time.Time     `json:"built_at,omitempty"`
	CorpusRoot       string         `json:"corpus_root,omitempty"`
}

// Info reports the extractor and, once loaded, the index. It never triggers a
// build.
func (s *Service) Info() ModelInfo {
	info := ModelInfo{
		ExtractionMethod: s.extractor.Method(),
		Dim:              s.extractor.Dim(),
		Strategy:         s.cfg.Strategy,
		ScoringMethod:    MethodIDComparison,
		Labels:           s.cfg.manifest().Labels(),
		CorpusRoot:       s.cfg.CorpusRoot,
	}
	if s.cfg.Strategy == StrategyCentroid {
		info.ScoringMethod = CentroidMethodID(s.extractor.Method())
	}
	if idx := s.index.Load(); idx != nil {
		builtAt := idx.BuiltAt()
		info.IndexLoaded = true
		info.Labels = idx.Labels()
		info.Vectors = idx.Len()
		info.SampleCounts = idx.SampleCounts()
		info.CorpusCounts = idx.CorpusCounts()
		info.BuiltAt = &builtAt
	}
	return info
}

// Suggestions returns artist-facing notes for label, or generic ones.
func (s *Service) Suggestions(label string) []string {
	return s.cfg.manifest().Suggestions(label)
}
