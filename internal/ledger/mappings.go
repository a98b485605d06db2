package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/basket/biofetch/internal/bus"
)

// Mapping is a cached symbol to accession resolution. Symbol is the
// symbol the user asked for; PrimarySymbol is what the service calls
// the protein, which may differ for aliases.
type Mapping struct {
	Symbol        string    `json:"symbol"`
	UniProtKBAC   string    `json:"uniprotkb_ac"`
	PrimarySymbol string    `json:"primary_symbol"`
	Symbols       []string  `json:"symbols,omitempty"`
	ENSPIDs       []string  `json:"ensp_ids,omitempty"`
	ResolvedAt    time.Time `json:"resolved_at"`
}

// PutMapping upserts a resolution into the cache.
func (s *Store) PutMapping(ctx context.Context, m Mapping) error {
	if m.Symbol == "" || m.UniProtKBAC == "" {
		return fmt.Errorf("mapping needs symbol and accession, got %q -> %q", m.Symbol, m.UniProtKBAC)
	}
	symbolsJSON, err := json.Marshal(m.Symbols)
	if err != nil {
		return fmt.Errorf("encode symbols: %w", err)
	}
	enspJSON, err := json.Marshal(m.ENSPIDs)
	if err != nil {
		return fmt.Errorf("encode ensp ids: %w", err)
	}
	err = withBusyRetry(ctx, 5, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO protein_mappings (symbol, uniprotkb_ac, primary_symbol, symbols_json, ensp_ids_json, resolved_at)
			VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(symbol) DO UPDATE SET
				uniprotkb_ac = excluded.uniprotkb_ac,
				primary_symbol = excluded.primary_symbol,
				symbols_json = excluded.symbols_json,
				ensp_ids_json = excluded.ensp_ids_json,
				resolved_at = CURRENT_TIMESTAMP;
		`, m.Symbol, m.UniProtKBAC, m.PrimarySymbol, string(symbolsJSON), string(enspJSON))
		if err != nil {
			return fmt.Errorf("upsert mapping %q: %w", m.Symbol, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if s.bus != nil {
		s.bus.Publish(bus.TopicMappingResolved, bus.SymbolEvent{
			Symbol:      m.Symbol,
			UniProtKBAC: m.UniProtKBAC,
		})
	}
	return nil
}

// GetMapping returns the cached resolution for a symbol, or nil when
// the cache has none. A mapping older than maxAge counts as absent;
// maxAge <= 0 disables expiry.
func (s *Store) GetMapping(ctx context.Context, symbol string, maxAge time.Duration) (*Mapping, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT symbol, uniprotkb_ac, primary_symbol, symbols_json, ensp_ids_json, resolved_at
		FROM protein_mappings
		WHERE symbol = ?;
	`, symbol)
	m, err := scanMapping(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get mapping %q: %w", symbol, err)
	}
	if maxAge > 0 && time.Since(m.ResolvedAt) > maxAge {
		return nil, nil
	}
	return m, nil
}

// ListMappings returns every cached resolution ordered by symbol.
func (s *Store) ListMappings(ctx context.Context) ([]Mapping, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, uniprotkb_ac, primary_symbol, symbols_json, ensp_ids_json, resolved_at
		FROM protein_mappings
		ORDER BY symbol ASC;
	`)
	if err != nil {
		return nil, fmt.Errorf("list mappings: %w", err)
	}
	defer rows.Close()

	var out []Mapping
	for rows.Next() {
		m, err := scanMapping(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan mapping: %w", err)
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("mapping rows: %w", err)
	}
	return out, nil
}

// InvalidateMappings drops cached resolutions for the given symbols.
// An empty slice drops the whole cache.
func (s *Store) InvalidateMappings(ctx context.Context, symbols []string) error {
	return withBusyRetry(ctx, 5, func() error {
		if len(symbols) == 0 {
			if _, err := s.db.ExecContext(ctx, `DELETE FROM protein_mappings;`); err != nil {
				return fmt.Errorf("clear mappings: %w", err)
			}
			return nil
		}
		for _, symbol := range symbols {
			if _, err := s.db.ExecContext(ctx, `DELETE FROM protein_mappings WHERE symbol = ?;`, symbol); err != nil {
				return fmt.Errorf("invalidate mapping %q: %w", symbol, err)
			}
		}
		return nil
	})
}

func scanMapping(scanFn func(dest ...any) error) (*Mapping, error) {
	var m Mapping
	var symbolsJSON, enspJSON string
	if err := scanFn(&m.Symbol, &m.UniProtKBAC, &m.PrimarySymbol, &symbolsJSON, &enspJSON, &m.ResolvedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(symbolsJSON), &m.Symbols); err != nil {
		return nil, fmt.Errorf("decode symbols: %w", err)
	}
	if err := json.Unmarshal([]byte(enspJSON), &m.ENSPIDs); err != nil {
		return nil, fmt.Errorf("decode ensp ids: %w", err)
	}
	return &m, nil
}
