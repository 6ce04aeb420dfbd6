package survey

import (
	"context"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// CleanName is applied to every cell at load time: NFC composition, trimmed,
// internal whitespace collapsed to single spaces. Case and accents are kept.
func CleanName(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

// FoldKey is the matching key for location names: accents stripped, upper case.
// "São Luís", "Sao Luis" and "SÃO LUÍS" share one key.
func FoldKey(s string) string {
	clean := CleanName(s)
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, clean)
	if err != nil {
		folded = clean
	}
	return strings.ToUpper(folded)
}

// Normalizer rewrites location names to a canonical spelling, usually the
// spelling of the coordinate table. Names without a canonical entry are only
// cleaned.
type Normalizer struct {
	canonical map[string]string
}

// NewNormalizer builds a normalizer whose canonical spellings are names.
// When two names fold to the same key the first one wins.
func NewNormalizer(names []string) *Normalizer {
	n := &Normalizer{canonical: make(map[string]string, len(names))}
	for _, name := range names {
		key := FoldKey(name)
		if _, ok := n.canonical[key]; !ok {
			n.canonical[key] = CleanName(name)
		}
	}
	return n
}

// Name returns the canonical spelling of s
func (n *Normalizer) Name(s string) string {
	clean := CleanName(s)
	if n == nil || clean == "" {
		return clean
	}
	if canon, ok := n.canonical[FoldKey(clean)]; ok {
		return canon
	}
	return clean
}

// Apply rewrites the location fields of records in place
func (n *Normalizer) Apply(records []TripRecord) {
	for i := range records {
		r := &records[i]
		r.Origin = n.Name(r.Origin)
		r.Destination = n.Name(r.Destination)
		r.OriginGroup = n.Name(r.OriginGroup)
		r.DestinationGroup = n.Name(r.DestinationGroup)
	}
}

type normalizedSource struct {
	Source
	n *Normalizer
}

// Normalized wraps src so every table it loads has canonical location names
func Normalized(src Source, n *Normalizer) Source {
	return &normalizedSource{Source: src, n: n}
}

func (s *normalizedSource) Load(ctx context.Context) (*Table, error) {
	table, err := s.Source.Load(ctx)
	if err != nil {
		return nil, err
	}
	s.n.Apply(table.Records)
	return table, nil
}
