package simstate

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/perpagent/internal/domain"
)

const (
	defaultStateDir  = "./wal/paper"
	defaultStateFile = "paper.json"
)

// Store persists paper account state so restarts keep balances and open positions.
type Store struct {
	path string
}

// NewStore creates a state store under dir, ./wal/paper when empty.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		dir = defaultStateDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create paper state dir")
	}

	return &Store{path: filepath.Join(dir, defaultStateFile)}, nil
}

// Path returns the state file location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// State represents all persisted paper account data.
type State struct {
	Cash      string                    `json:"cash"`
	Realized  string                    `json:"realized_pnl"`
	Positions map[string]StoredPosition `json:"positions,omitempty"`
	Leverage  map[string]int            `json:"leverage,omitempty"`
	UpdatedAt time.Time                 `json:"updated_at"`
}

// StoredPosition is a serializable open position.
type StoredPosition struct {
	Side       domain.PositionSide `json:"side"`
	Quantity   string              `json:"quantity"`
	EntryPrice string              `json:"entry_price"`
	Margin     string              `json:"margin"`
	Leverage   int                 `json:"leverage"`
	OpenedAt   time.Time           `json:"opened_at"`
}

// Position is the decoded form of StoredPosition.
type Position struct {
	Side       domain.PositionSide
	Quantity   decimal.Decimal
	EntryPrice decimal.Decimal
	Margin     decimal.Decimal
	Leverage   int
	OpenedAt   time.Time
}

// Load reads state from disk. A missing file yields nil state and no error.
func (s *Store) Load() (*State, error) {
	if s == nil || s.path == "" {
		return nil, nil
	}

	payload, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, errors.Wrap(err, "read paper state")
	}

	if len(payload) == 0 {
		return nil, nil
	}

	var state State
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, errors.Wrap(err, "decode paper state")
	}

	return &state, nil
}

// Save writes state to disk atomically via temp file.
func (s *Store) Save(state State) error {
	if s == nil || s.path == "" {
		return nil
	}

	payload, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode paper state")
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return errors.Wrap(err, "write paper state temp file")
	}

	if err := os.Rename(tmp, s.path); err != nil {
		return errors.Wrap(err, "persist paper state")
	}

	return nil
}

// NewStoredPosition converts a Position into its stored representation.
func NewStoredPosition(pos Position) StoredPosition {
	return StoredPosition{
		Side:       pos.Side,
		Quantity:   pos.Quantity.String(),
		EntryPrice: pos.EntryPrice.String(),
		Margin:     pos.Margin.String(),
		Leverage:   pos.Leverage,
		OpenedAt:   pos.OpenedAt,
	}
}

// ToPosition reconstructs a Position from stored data.
func (sp StoredPosition) ToPosition() (Position, error) {
	qty, err := decimal.NewFromString(sp.Quantity)
	if err != nil {
		return Position{}, errors.Wrap(err, "decode position quantity")
	}

	entry, err := decimal.NewFromString(sp.EntryPrice)
	if err != nil {
		return Position{}, errors.Wrap(err, "decode position entry price")
	}

	margin := decimal.Zero
	if sp.Margin != "" {
		margin, err = decimal.NewFromString(sp.Margin)
		if err != nil {
			return Position{}, errors.Wrap(err, "decode position margin")
		}
	}

	return Position{
		Side:       sp.Side,
		Quantity:   qty,
		EntryPrice: entry,
		Margin:     margin,
		Leverage:   sp.Leverage,
		OpenedAt:   sp.OpenedAt,
	}, nil
}
