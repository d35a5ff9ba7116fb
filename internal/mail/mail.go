// Package mail dispatches RFQ emails and loads supplier replies.
package mail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Result statuses.
const (
	StatusSent    = "sent"
	StatusFailed  = "failed"
	StatusOutbox  = "demo_outbox"
	outboxPattern = "emails_%d.json"
)

type Meta struct {
	Category   string `json:"category"`
	SupplierID string `json:"supplier_id"`
}

// Email is one plain-text RFQ message.
type Email struct {
	ToEmail string `json:"to_email" validate:"required,email"`
	ToName  string `json:"to_name"`
	Subject string `json:"subject" validate:"required"`
	Body    string `json:"body"`
	Meta    Meta   `json:"meta"`
}

// Result is the delivery outcome of one email.
type Result struct {
	To     string `json:"to"`
	Status string `json:"status"`
	File   string `json:"file,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Sender delivers a batch of emails. Failures of individual recipients are
// reported in the results; the error is reserved for the batch as a whole.
type Sender interface {
	Send(ctx context.Context, emails []Email) ([]Result, error)
}

var validate = validator.New()

// Outbox writes the batch to a JSON file instead of sending it.
type Outbox struct {
	dir    string
	logger *zap.Logger
	now    func() time.Time
}

func NewOutbox(dir string, logger *zap.Logger) *Outbox {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Outbox{dir: dir, logger: logger, now: time.Now}
}

func (o *Outbox) Send(_ context.Context, emails []Email) ([]Result, error) {
	if len(emails) == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(o.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create outbox dir: %w", err)
	}

	path := filepath.Join(o.dir, fmt.Sprintf(outboxPattern, o.now().Unix()))
	data, err := json.MarshalIndent(emails, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal outbox: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("write outbox %s: %w", path, err)
	}

	results := make([]Result, 0, len(emails))
	for _, e := range emails {
		results = append(results, Result{To: e.ToEmail, Status: StatusOutbox, File: path})
	}

	o.logger.Info("emails written to outbox",
		zap.String("file", path),
		zap.Int("count", len(emails)),
	)
	return results, nil
}

// LoadReplies reads the supplier replies document shaped
// supplier -> sku -> {components, raw_reply}. A missing file yields no replies.
func LoadReplies(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("read replies %s: %w", path, err)
	}

	replies := map[string]any{}
	if len(data) == 0 {
		return replies, nil
	}
	if err := json.Unmarshal(data, &replies); err != nil {
		return nil, fmt.Errorf("decode replies %s: %w", path, err)
	}
	return replies, nil
}

// Summary returns counts of results by status.
func Summary(results []Result) map[string]int {
	out := make(map[string]int)
	for _, r := range results {
		out[r.Status]++
	}
	return out
}
