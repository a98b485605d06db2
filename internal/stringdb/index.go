package stringdb

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/basket/biofetch/internal/umap"
)

// Index resolves between gene symbols and the Ensembl protein ids the
// links table keys its rows by. Aliases carry the same ids as their
// primary symbol; every known id resolves back to the primary symbol.
type Index struct {
	symbolByENSP map[string]string
	firstENSP    map[string]string
	allENSPs     map[string][]string
}

func NewIndex(mappings []umap.ProteinMapping) *Index {
	idx := &Index{
		symbolByENSP: make(map[string]string),
		firstENSP:    make(map[string]string),
		allENSPs:     make(map[string][]string),
	}
	for _, m := range mappings {
		if m.PrimarySymbol == "" || len(m.ENSPIDs) == 0 {
			continue
		}
		ids := make([]string, len(m.ENSPIDs))
		for i, id := range m.ENSPIDs {
			ids[i] = NormalizeENSP(id)
		}
		idx.add(m.PrimarySymbol, ids)
		for _, id := range ids {
			idx.symbolByENSP[id] = m.PrimarySymbol
		}
		for _, alias := range m.Symbols {
			if alias != m.PrimarySymbol {
				idx.add(alias, ids)
			}
		}
	}
	return idx
}

func (x *Index) add(symbol string, ids []string) {
	x.firstENSP[symbol] = ids[0]
	x.allENSPs[symbol] = ids
}

// SymbolFor resolves a links-table protein id to its primary gene
// symbol.
func (x *Index) SymbolFor(proteinID string) (string, bool) {
	s, ok := x.symbolByENSP[NormalizeENSP(proteinID)]
	return s, ok
}

// FirstENSP returns the id a symbol's links rows are expected under.
func (x *Index) FirstENSP(symbol string) (string, bool) {
	id, ok := x.firstENSP[symbol]
	return id, ok
}

// ENSPs returns every known id for a symbol.
func (x *Index) ENSPs(symbol string) []string {
	return x.allENSPs[symbol]
}

// Pair is one anchor/target row from the pairs file.
type Pair struct {
	Anchor string
	Target string
}

// ReadPairs loads an anchor/target pairs CSV. Column order does not
// matter; the header has to name "Anchor Target" and "Pair Target".
func ReadPairs(path string) ([]Pair, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read %s header: %w", path, err)
	}
	// Spreadsheet exports lead with a byte order mark.
	header[0] = strings.TrimPrefix(header[0], "\uFEFF")

	anchor, target := -1, -1
	for i, name := range header {
		switch strings.TrimSpace(name) {
		case "Anchor Target":
			anchor = i
		case "Pair Target":
			target = i
		}
	}
	if anchor < 0 || target < 0 {
		return nil, fmt.Errorf("%s: header %v lacks Anchor Target or Pair Target", path, header)
	}

	var pairs []Pair
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		p := Pair{
			Anchor: strings.TrimSpace(row[anchor]),
			Target: strings.TrimSpace(row[target]),
		}
		if p.Anchor == "" || p.Target == "" {
			continue
		}
		pairs = append(pairs, p)
	}
	return pairs, nil
}
