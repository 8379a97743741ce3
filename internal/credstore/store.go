// Package credstore parses the accounts configuration blob and indexes
// account records by internal id and by webhook token.
//
// Design rules:
//   - The store never raises unless the JSON itself is malformed.
//   - Records failing validation are dropped with a diagnostic.
//   - Both indexes are read-only after construction.
package credstore

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
)

// AccountClass identifies the asset class an account trades.
type AccountClass string

const (
	ClassStock     AccountClass = "STOCK"
	ClassFutures   AccountClass = "FUTURES"
	ClassOverseas  AccountClass = "OVERSEAS"
)

// Account is one entry in the accounts blob.
type Account struct {
	ID                   string       `json:"id"`
	WebhookToken         string       `json:"webhook_token"`
	AppKey               string       `json:"app_key"`
	AppSecret            string       `json:"app_secret"`
	AccountNumber        string       `json:"account_number"`
	AccountProduct       string       `json:"account_product"`
	AccountType          string       `json:"account_type"`
	Class                AccountClass `json:"-"`
	IsVirtual            bool         `json:"is_virtual"`
	IsActive             bool         `json:"is_active"`
	RealAccountReference string       `json:"real_account_reference,omitempty"`

	// Strategies carries per-account strategy risk metadata
	// (max_position_ratio, max_daily_loss, active) as raw JSON. The store
	// doesn't interpret this field — it's opaque bytes passed through to
	// whatever package defines the strategy-config shape, keeping
	// credstore's dependency graph a leaf (see DESIGN.md).
	Strategies json.RawMessage `json:"strategies,omitempty"`
}

// deriveClass resolves AccountClass from the account_type field, falling
// back to the account_product-based inference described below.
func deriveClass(a *Account) AccountClass {
	switch strings.ToUpper(a.AccountType) {
	case string(ClassStock), string(ClassFutures), string(ClassOverseas):
		return AccountClass(strings.ToUpper(a.AccountType))
	}
	if strings.HasPrefix(a.AccountProduct, "03") {
		return ClassFutures
	}
	return ClassStock
}

// Store holds the validated, indexed account set for the life of a process.
// Both indexes are built once in New and never mutated afterward, so no
// locking is required for lookups.
type Store struct {
	byID    map[string]Account
	byToken map[string]Account
}

// New parses accountsJSON (an array of Account objects) and builds the
// byId/byToken indexes. Malformed JSON is the only error condition; records
// that fail validation are dropped with a log line and otherwise ignored.
func New(accountsJSON []byte, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.New(log.Writer(), "[credstore] ", log.LstdFlags)
	}

	s := &Store{
		byID:    make(map[string]Account),
		byToken: make(map[string]Account),
	}

	if len(strings.TrimSpace(string(accountsJSON))) == 0 {
		return s, nil
	}

	var raw []Account
	if err := json.Unmarshal(accountsJSON, &raw); err != nil {
		return nil, fmt.Errorf("credstore: parse accounts: %w", err)
	}

	for i := range raw {
		acct := raw[i]
		if err := validate(&acct); err != nil {
			logger.Printf("[credstore] dropping account %q: %v", acct.ID, err)
			continue
		}
		if _, dup := s.byID[acct.ID]; dup {
			logger.Printf("[credstore] dropping account %q: duplicate id", acct.ID)
			continue
		}
		if _, dup := s.byToken[acct.WebhookToken]; dup {
			logger.Printf("[credstore] dropping account %q: duplicate webhook_token", acct.ID)
			continue
		}
		acct.Class = deriveClass(&acct)
		s.byID[acct.ID] = acct
		s.byToken[acct.WebhookToken] = acct
	}

	return s, nil
}

// validate checks the invariants required at load time.
func validate(a *Account) error {
	if a.ID == "" {
		return fmt.Errorf("missing id")
	}
	if a.WebhookToken == "" {
		return fmt.Errorf("missing webhook_token")
	}
	if a.AppKey == "" || a.AppSecret == "" || a.AccountNumber == "" || a.AccountProduct == "" {
		return fmt.Errorf("one or more core credential fields empty")
	}
	if len(a.AccountNumber) != 8 {
		return fmt.Errorf("account_number must be exactly 8 chars, got %d", len(a.AccountNumber))
	}
	if len(a.AccountProduct) != 2 {
		return fmt.Errorf("account_product must be exactly 2 chars, got %d", len(a.AccountProduct))
	}
	return nil
}

// ErrNotFound is returned by the lookup methods when no record matches.
var ErrNotFound = fmt.Errorf("credstore: account not found")

// LoadByID returns the account with the given internal id.
func (s *Store) LoadByID(id string) (Account, error) {
	acct, ok := s.byID[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	return acct, nil
}

// LoadByToken returns the account whose webhook_token matches token.
func (s *Store) LoadByToken(token string) (Account, error) {
	acct, ok := s.byToken[token]
	if !ok {
		return Account{}, ErrNotFound
	}
	return acct, nil
}

// ListIDs returns the set of all loaded account ids.
func (s *Store) ListIDs() []string {
	ids := make([]string, 0, len(s.byID))
	for id := range s.byID {
		ids = append(ids, id)
	}
	return ids
}
