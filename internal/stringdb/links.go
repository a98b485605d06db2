package stringdb

import (
	"fmt"
	"strconv"
	"strings"
)

// prior is the expected chance that two random human proteins
// interact. STRING folds it into every channel subscore, so it has to
// come out before channels can be multiplied together, and goes back
// in exactly once at the end.
const prior = 0.041

// linkColumns is the column count of the protein.links.full table.
const linkColumns = 16

// Link is one parsed line of the links table, subscores already
// rescaled from 0..1000 to 0..1.
type Link struct {
	Protein1 string
	Protein2 string

	Neighborhood            float64
	NeighborhoodTransferred float64
	Fusion                  float64
	Cooccurrence            float64
	Homology                float64
	Coexpression            float64
	CoexpressionTransferred float64
	Experiments             float64
	ExperimentsTransferred  float64
	Database                float64
	DatabaseTransferred     float64
	Textmining              float64
	TextminingTransferred   float64

	Initial int // the table's own combined_score column
}

func parseLink(fields []string) (Link, error) {
	if len(fields) != linkColumns {
		return Link{}, fmt.Errorf("expected %d columns, got %d", linkColumns, len(fields))
	}
	var sub [13]float64
	for i, raw := range fields[2:15] {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Link{}, fmt.Errorf("column %d: %w", i+3, err)
		}
		sub[i] = v / 1000
	}
	initial, err := strconv.Atoi(fields[15])
	if err != nil {
		return Link{}, fmt.Errorf("combined_score: %w", err)
	}
	return Link{
		Protein1:                fields[0],
		Protein2:                fields[1],
		Neighborhood:            sub[0],
		NeighborhoodTransferred: sub[1],
		Fusion:                  sub[2],
		Cooccurrence:            sub[3],
		Homology:                sub[4],
		Coexpression:            sub[5],
		CoexpressionTransferred: sub[6],
		Experiments:             sub[7],
		ExperimentsTransferred:  sub[8],
		Database:                sub[9],
		DatabaseTransferred:     sub[10],
		Textmining:              sub[11],
		TextminingTransferred:   sub[12],
		Initial:                 initial,
	}, nil
}

// priorAway removes the prior from a channel subscore.
func priorAway(score float64) float64 {
	if score < prior {
		score = prior
	}
	return (score - prior) / (1 - prior)
}

func combineBoth(direct, transferred float64) float64 {
	return 1 - (1-direct)*(1-transferred)
}

// Score is the recombined evidence for one protein pair.
type Score struct {
	Coexpression float64 // direct and transferred combined, prior removed
	Experiments  float64
	Textmining   float64
	Combined     int // 0..1000, prior restored
}

// Score recombines the channel subscores the v12 way. Each reported
// channel folds its transferred evidence in; the combined total
// multiplies the three direct channels only.
func (l Link) Score() Score {
	coex := priorAway(l.Coexpression)
	exper := priorAway(l.Experiments)
	text := priorAway(l.Textmining)

	oneMinus := (1 - coex) * (1 - exper) * (1 - text)
	combined := (1-oneMinus)*(1-prior) + prior

	return Score{
		Coexpression: combineBoth(coex, priorAway(l.CoexpressionTransferred)),
		Experiments:  combineBoth(exper, priorAway(l.ExperimentsTransferred)),
		Textmining:   combineBoth(text, priorAway(l.TextminingTransferred)),
		Combined:     int(combined * 1000),
	}
}

// NormalizeENSP strips the taxonomy prefix and the version suffix from
// a STRING protein id, so "9606.ENSP00000256078.3" becomes
// "ENSP00000256078".
func NormalizeENSP(id string) string {
	id = strings.TrimPrefix(id, "9606.")
	i := strings.LastIndexByte(id, '.')
	if i < 0 || i == len(id)-1 {
		return id
	}
	for _, r := range id[i+1:] {
		if r < '0' || r > '9' {
			return id
		}
	}
	return id[:i]
}
