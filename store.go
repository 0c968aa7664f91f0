package artstyle

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/pkg/errors"
)

const (
	indexMatrixFile = "index.arrow"
	indexMetaFile   = "index.meta.json"
)

// IndexMeta is the sidecar record stored next to the vector matrix.
type IndexMeta struct {
	Method       Method         `json:"method"`
	BuiltAt      int64          `json:"built_at"` // unix seconds
	LabelNames   []string       `json:"label_names"`
	Count        int            `json:"count"`
	Dim          int            `json:"dim"`
	DatasetDir   string         `json:"dataset_dir,omitempty"`
	LabelCounts  map[string]int `json:"label_counts"`
	CorpusCounts map[string]int `json:"corpus_counts"`
}

// SaveIndex writes idx to dir as an Arrow IPC matrix (label, source, vector)
// plus a JSON sidecar. The sidecar is written last so a partial save is never
// loaded.
func SaveIndex(dir string, idx *ReferenceIndex) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create index dir %s", dir)
	}
	// Invalidate the old sidecar before the matrix changes underneath it.
	metaPath := filepath.Join(dir, indexMetaFile)
	if err := os.Remove(metaPath); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "remove stale index meta")
	}

	if err := writeMatrix(filepath.Join(dir, indexMatrixFile), idx); err != nil {
		return err
	}

	meta := IndexMeta{
		Method:       idx.Method(),
		BuiltAt:      idx.BuiltAt().Unix(),
		LabelNames:   idx.Labels(),
		Count:        idx.Len(),
		Dim:          idx.Dim(),
		DatasetDir:   idx.Root(),
		LabelCounts:  idx.SampleCounts(),
		CorpusCounts: idx.CorpusCounts(),
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal index meta")
	}
	tmp := metaPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrapf(err, "write %s", tmp)
	}
	return errors.Wrap(os.Rename(tmp, metaPath), "commit index meta")
}

// ReadIndexMeta reads the sidecar in dir. A missing sidecar is ErrIndexNotFound.
func ReadIndexMeta(dir string) (*IndexMeta, error) {
	data, err := os.ReadFile(filepath.Join(dir, indexMetaFile))
	if os.IsNotExist(err) {
		return nil, errors.Wrapf(ErrIndexNotFound, "no %s in %s", indexMetaFile, dir)
	}
	if err != nil {
		return nil, errors.Wrap(err, "read index meta")
	}
	var meta IndexMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, errors.Wrap(err, "parse index meta")
	}
	return &meta, nil
}

// LoadIndex loads the index persisted in dir. It returns ErrIndexNotFound when
// nothing is persisted and ErrMethodMismatch when the index was built by a
// method other than want or holds vectors that are not dim wide; incompatible
// vectors are never returned.
func LoadIndex(dir string, want Method, dim int) (*ReferenceIndex, error) {
	meta, err := ReadIndexMeta(dir)
	if err != nil {
		return nil, err
	}
	if meta.Method != want {
		return nil, errors.Wrapf(ErrMethodMismatch, "persisted %q, active %q", meta.Method, want)
	}
	if meta.Dim != dim {
		return nil, errors.Wrapf(ErrMethodMismatch, "persisted %s vectors are %d wide, active extractor emits %d", want, meta.Dim, dim)
	}

	samples, err := readMatrix(filepath.Join(dir, indexMatrixFile), meta.Dim)
	if err != nil {
		return nil, err
	}
	if len(samples) != meta.Count {
		return nil, errors.Wrapf(ErrIndexNotFound, "matrix holds %d vectors, meta says %d", len(samples), meta.Count)
	}

	counts := meta.CorpusCounts
	if counts == nil {
		counts = make(map[string]int)
	}
	for _, l := range meta.LabelNames {
		if _, ok := counts[l]; !ok {
			counts[l] = meta.LabelCounts[l]
		}
	}

	idx, err := NewReferenceIndex(meta.Method, meta.Dim, samples, counts)
	if err != nil {
		return nil, err
	}
	idx.builtAt = time.Unix(meta.BuiltAt, 0).UTC()
	idx.root = meta.DatasetDir
	return idx, nil
}

func matrixSchema(dim int) *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "label", Type: arrow.BinaryTypes.String},
		{Name: "source", Type: arrow.BinaryTypes.String},
		{Name: "vector", Type: arrow.FixedSizeListOf(int32(dim), arrow.PrimitiveTypes.Float32)},
	}, nil)
}

func writeMatrix(path string, idx *ReferenceIndex) error {
	mem := memory.NewGoAllocator()
	schema := matrixSchema(idx.Dim())

	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()
	labels := b.Field(0).(*array.StringBuilder)
	sources := b.Field(1).(*array.StringBuilder)
	vectors := b.Field(2).(*array.FixedSizeListBuilder)
	values := vectors.ValueBuilder().(*array.Float32Builder)

	for _, l := range idx.Labels() {
		for _, s := range idx.Samples(l) {
			labels.Append(s.Label)
			sources.Append(s.Source)
			vectors.Append(true)
			values.AppendValues(s.Vector, nil)
		}
	}
	rec := b.NewRecord()
	defer rec.Release()

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer f.Close()

	w, err := ipc.NewFileWriter(f, ipc.WithSchema(schema), ipc.WithAllocator(mem))
	if err != nil {
		return errors.Wrap(err, "open arrow writer")
	}
	if err := w.Write(rec); err != nil {
		_ = w.Close()
		return errors.Wrap(err, "write index matrix")
	}
	if err := w.Close(); err != nil {
		return errors.Wrap(err, "close arrow writer")
	}
	return errors.Wrap(f.Sync(), "sync index matrix")
}

func readMatrix(path string, dim int) ([]ReferenceSample, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, errors.Wrapf(ErrIndexNotFound, "no %s", path)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	r, err := ipc.NewFileReader(f, ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		return nil, errors.Wrap(err, "open arrow reader")
	}
	defer r.Close()

	var out []ReferenceSample
	for i := range r.NumRecords() {
		rec, err := r.Record(i)
		if err != nil {
			return nil, errors.Wrapf(err, "read record batch %d", i)
		}
		batch, err := samplesFromRecord(rec, dim)
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
	}
	return out, nil
}

func samplesFromRecord(rec arrow.Record, dim int) ([]ReferenceSample, error) {
	if rec.NumCols() != 3 {
		return nil, errors.Errorf("index matrix has %d columns, want 3", rec.NumCols())
	}
	labels, ok1 := rec.Column(0).(*array.String)
	sources, ok2 := rec.Column(1).(*array.String)
	vectors, ok3 := rec.Column(2).(*array.FixedSizeList)
	if !ok1 || !ok2 || !ok3 {
		return nil, errors.New("index matrix has unexpected column types")
	}
	lt, ok := vectors.DataType().(*arrow.FixedSizeListType)
	if !ok || int(lt.Len()) != dim {
		return nil, errors.Wrapf(ErrDimensionMismatch, "matrix vectors are not %d wide", dim)
	}
	values, ok := vectors.ListValues().(*array.Float32)
	if !ok {
		return nil, errors.New("index matrix vectors are not float32")
	}

	raw := values.Float32Values()
	offset := vectors.Data().Offset()
	n := int(rec.NumRows())
	out := make([]ReferenceSample, 0, n)
	for i := range n {
		start := (offset + i) * dim
		vec := make(Vector, dim)
		copy(vec, raw[start:start+dim])
		out = append(out, ReferenceSample{
			Label:  labels.Value(i),
			Source: sources.Value(i),
			Vector: vec,
		})
	}
	return out, nil
}
