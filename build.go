package artstyle

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"github.com/corona10/goimagehash"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxSamplesPerLabel caps the reference vectors indexed per label.
const DefaultMaxSamplesPerLabel = 400

// BuildOptions configures BuildIndex. Zero values mean "use defaults".
type BuildOptions struct {
	Root string // corpus root directory

	// Folders maps label -> folder under Root. When empty every
	// sub-directory of Root is a label named by NormalizeLabel.
	Folders map[string]string

	MaxSamplesPerLabel int          // default DefaultMaxSamplesPerLabel
	Workers            int          // parallel extractions, default GOMAXPROCS
	DedupThreshold     int          // dHash distance below which a reference is a duplicate; 0 disables
	MaxPixels          int          // decode guard, default DefaultMaxPixels
	Logger             *slog.Logger // default slog.Default()
}

func (o *BuildOptions) defaults() {
	if o.MaxSamplesPerLabel <= 0 {
		o.MaxSamplesPerLabel = DefaultMaxSamplesPerLabel
	}
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// BuildIndex walks each label folder of the corpus, extracts a vector for at
// most MaxSamplesPerLabel images per label (file-name order) and returns the
// index. Images that fail to decode are logged and skipped. A missing or empty
// corpus yields ErrDatasetUnavailable.
func BuildIndex(ctx context.Context, ext FeatureExtractor, opts BuildOptions) (*ReferenceIndex, error) {
	opts.defaults()
	start := time.Now()

	folders, err := resolveFolders(opts.Root, opts.Folders)
	if err != nil {
		return nil, err
	}

	labels := make([]string, 0, len(folders))
	for l := range folders {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	var samples []ReferenceSample
	counts := make(map[string]int, len(labels))
	for _, label := range labels {
		files, err := listImages(filepath.Join(opts.Root, folders[label]))
		if err != nil {
			opts.Logger.Warn("artstyle: skipping label folder", "label", label, "folder", folders[label], "error", err.Error())
			continue
		}
		counts[label] = len(files)

		got, err := extractLabel(ctx, ext, label, opts, files)
		if err != nil {
			return nil, err
		}
		opts.Logger.Debug("artstyle: label indexed", "label", label, "files", len(files), "samples", len(got))
		samples = append(samples, got...)
	}

	if len(samples) == 0 {
		return nil, errors.Wrapf(ErrDatasetUnavailable, "no usable reference image under %s", opts.Root)
	}

	idx, err := NewReferenceIndex(ext.Method(), ext.Dim(), samples, counts)
	if err != nil {
		return nil, err
	}
	idx.root = opts.Root

	opts.Logger.Info("artstyle: index built",
		"method", idx.Method(), "vectors", idx.Len(), "labels", len(idx.Labels()),
		"duration", time.Since(start).String())
	return idx, nil
}

// resolveFolders returns label -> folder, derived from the directory layout
// when folders is empty.
func resolveFolders(root string, folders map[string]string) (map[string]string, error) {
	if root == "" {
		return nil, errors.Wrap(ErrDatasetUnavailable, "corpus root not configured")
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, errors.Wrapf(ErrDatasetUnavailable, "read corpus %s: %v", root, err)
	}
	if len(folders) > 0 {
		return folders, nil
	}

	out := make(map[string]string)
	for _, e := range entries {
		if !e.IsDir() || e.Name()[0] == '.' {
			continue
		}
		label := NormalizeLabel(e.Name())
		if _, ok := out[label]; ok {
			continue // first folder in name order wins
		}
		out[label] = e.Name()
	}
	if len(out) == 0 {
		return nil, errors.Wrapf(ErrDatasetUnavailable, "corpus %s has no label folders", root)
	}
	return out, nil
}

// listImages returns the image files of dir in name order.
func listImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() && IsImageFile(e.Name()) {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}

type extraction struct {
	vec  Vector
	hash *goimagehash.ImageHash
	err  error
}

// extractLabel extracts files in windows of the remaining quota so failures
// are replaced by later files while results stay in file order.
func extractLabel(ctx context.Context, ext FeatureExtractor, label string, opts BuildOptions, files []string) ([]ReferenceSample, error) {
	dedup := newReferenceDedup(opts.DedupThreshold)
	var out []ReferenceSample

	pending := files
	for len(out) < opts.MaxSamplesPerLabel && len(pending) > 0 {
		need := min(opts.MaxSamplesPerLabel-len(out), len(pending))
		batch := pending[:need]
		pending = pending[need:]

		results, err := extractBatch(ctx, ext, dedup, opts, batch)
		if err != nil {
			return nil, err
		}
		for i, r := range results {
			if r.err != nil {
				opts.Logger.Warn("artstyle: skipping reference image", "label", label, "path", batch[i], "error", r.err.Error())
				continue
			}
			if dedup.seen(r.hash) {
				opts.Logger.Debug("artstyle: duplicate reference skipped", "label", label, "path", batch[i])
				continue
			}
			out = append(out, ReferenceSample{
				Label:  label,
				Vector: r.vec,
				Source: relativeSource(opts.Root, batch[i]),
			})
		}
	}
	return out, nil
}

func extractBatch(ctx context.Context, ext FeatureExtractor, dedup *referenceDedup, opts BuildOptions, paths []string) ([]extraction, error) {
	results := make([]extraction, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)

	for i, p := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(p)
			if err != nil {
				results[i].err = err
				return nil
			}
			img, err := DecodeImage(data, opts.MaxPixels)
			if err != nil {
				results[i].err = err
				return nil
			}
			vec, err := ext.Extract(img)
			if err != nil {
				results[i].err = err
				return nil
			}
			results[i] = extraction{vec: vec, hash: dedup.hash(img)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "index build interrupted")
	}
	return results, nil
}

func relativeSource(root, path string) string {
	if rel, err := filepath.Rel(root, path); err == nil {
		return filepath.ToSlash(rel)
	}
	return path
}
