package artstyle

import (
	"os"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// StyleSpec describes one style category of the reference corpus.
type StyleSpec struct {
	Label       string   `yaml:"label"`
	Folder      string   `yaml:"folder"`      // directory under the corpus root
	Keywords    []string `yaml:"keywords"`    // weak filename indicators
	Suggestions []string `yaml:"suggestions"` // shown to the artist after classification
}

// Manifest maps the reference corpus layout to labels. It is optional: without
// one, every sub-directory of the corpus root becomes a label via NormalizeLabel.
type Manifest struct {
	Styles []StyleSpec `yaml:"styles"`
}

// DefaultManifest describes the canonical folk-art corpus.
func DefaultManifest() *Manifest {
	return &Manifest{Styles: []StyleSpec{
		{
			Label:    "madhubani",
			Folder:   "madhubani painting",
			Keywords: DefaultKeywords["madhubani"],
			Suggestions: []string{
				"Traditional Madhubani art from Bihar, India",
				"Known for intricate patterns and vibrant colors",
				"Often depicts nature, mythology, and social events",
				"Try using natural pigments and fine brushwork",
			},
		},
		{
			Label:    "pithora",
			Folder:   "Pithora",
			Keywords: DefaultKeywords["pithora"],
			Suggestions: []string{
				"Ritual wall painting of the Rathwa and Bhil communities of Gujarat",
				"Horses and deities are central, painted in bright earth colours",
				"Traditionally made to mark thanksgiving and ceremonies",
				"Try layered figures with bold outlines and dotted borders",
			},
		},
		{
			Label:    "warli",
			Folder:   "warli painting",
			Keywords: DefaultKeywords["warli"],
			Suggestions: []string{
				"Ancient tribal art form from Maharashtra, India",
				"Characterized by simple geometric shapes",
				"Uses white pigment on mud walls traditionally",
				"Depicts daily life, harvest, and festivals",
			},
		},
	}}
}

// GenericSuggestions are returned for labels without their own suggestions.
var GenericSuggestions = []string{
	"This artwork shows contemporary or mixed influences",
	"Consider exploring traditional Indian art styles",
	"Experiment with regional folk art techniques",
	"Research local artistic traditions for inspiration",
}

// LoadManifest reads a YAML manifest from path.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read manifest %s", path)
	}
	return ParseManifest(data)
}

// ParseManifest decodes a YAML manifest and validates it.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, "parse manifest")
	}
	seen := make(map[string]bool, len(m.Styles))
	for i := range m.Styles {
		s := &m.Styles[i]
		s.Label = strings.ToLower(strings.TrimSpace(s.Label))
		if s.Label == "" {
			return nil, errors.Errorf("manifest style %d: empty label", i)
		}
		if seen[s.Label] {
			return nil, errors.Errorf("manifest style %q declared twice", s.Label)
		}
		seen[s.Label] = true
		if s.Folder == "" {
			s.Folder = s.Label
		}
	}
	return &m, nil
}

// Labels returns the declared labels in lexical order.
func (m *Manifest) Labels() []string {
	out := make([]string, 0, len(m.Styles))
	for _, s := range m.Styles {
		out = append(out, s.Label)
	}
	sort.Strings(out)
	return out
}

// Folders returns the label -> folder map used by BuildIndex.
func (m *Manifest) Folders() map[string]string {
	out := make(map[string]string, len(m.Styles))
	for _, s := range m.Styles {
		out[s.Label] = s.Folder
	}
	return out
}

// Keywords returns the label -> keywords map used by FilenameHeuristic.
func (m *Manifest) Keywords() map[string][]string {
	out := make(map[string][]string, len(m.Styles))
	for _, s := range m.Styles {
		out[s.Label] = s.Keywords
	}
	return out
}

// Suggestions returns the suggestions for label, or GenericSuggestions.
func (m *Manifest) Suggestions(label string) []string {
	for _, s := range m.Styles {
		if s.Label == label && len(s.Suggestions) > 0 {
			return s.Suggestions
		}
	}
	return GenericSuggestions
}

// NormalizeLabel maps a corpus folder name to a label. Known style names are
// folded onto their canonical label ("warli painting" -> "warli").
func NormalizeLabel(folder string) string {
	n := strings.ToLower(strings.TrimSpace(folder))
	switch {
	case strings.Contains(n, "madhubani"):
		return "madhubani"
	case strings.Contains(n, "warli"):
		return "warli"
	case strings.Contains(n, "pithora"), strings.Contains(n, "pithori"):
		return "pithora"
	}
	return strings.ReplaceAll(n, "_", " ")
}
