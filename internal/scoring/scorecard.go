package scoring

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Scorecard is the immutable result of one scoring run.
type Scorecard struct {
	sessionID string
	createdAt time.Time
	scores    []Score
	formula   *Formula
}

type scorecardJSON struct {
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
	Scores    []Score   `json:"scores"`
	Formula   *Formula  `json:"formula"`
}

// NewScorecard packages scores and the formula under a fresh session id.
func NewScorecard(scores []Score, formula *Formula) *Scorecard {
	return RestoreScorecard(uuid.NewString(), time.Now().UTC(), scores, formula)
}

// RestoreScorecard rebuilds a stored scorecard with its original identity.
func RestoreScorecard(sessionID string, createdAt time.Time, scores []Score, formula *Formula) *Scorecard {
	sc := &Scorecard{
		sessionID: sessionID,
		createdAt: createdAt,
		scores:    make([]Score, 0, len(scores)),
		formula:   formula.Clone(),
	}
	for _, s := range scores {
		sc.scores = append(sc.scores, s.clone())
	}
	return sc
}

func (s *Scorecard) SessionID() string { return s.sessionID }

func (s *Scorecard) CreatedAt() time.Time { return s.createdAt }

// Scores returns a copy of all scores in row order.
func (s *Scorecard) Scores() []Score {
	out := make([]Score, 0, len(s.scores))
	for _, sc := range s.scores {
		out = append(out, sc.clone())
	}
	return out
}

// Formula returns a copy of the formula used.
func (s *Scorecard) Formula() *Formula { return s.formula.Clone() }

// SKUs lists SKU ids in first-seen order.
func (s *Scorecard) SKUs() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, sc := range s.scores {
		if _, ok := seen[sc.SKUID]; ok {
			continue
		}
		seen[sc.SKUID] = struct{}{}
		out = append(out, sc.SKUID)
	}
	return out
}

// Ranking returns the SKU's scores best first. Ties keep row order.
func (s *Scorecard) Ranking(skuID string) []Score {
	var out []Score
	for _, sc := range s.scores {
		if sc.SKUID == skuID {
			out = append(out, sc.clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TotalScore > out[j].TotalScore
	})
	return out
}

// Winners returns the top score of every SKU in SKU order.
func (s *Scorecard) Winners() []Score {
	var out []Score
	for _, sku := range s.SKUs() {
		if ranking := s.Ranking(sku); len(ranking) > 0 {
			out = append(out, ranking[0])
		}
	}
	return out
}

func (s *Scorecard) MarshalJSON() ([]byte, error) {
	scores := s.scores
	if scores == nil {
		scores = []Score{}
	}
	return json.Marshal(scorecardJSON{
		SessionID: s.sessionID,
		CreatedAt: s.createdAt,
		Scores:    scores,
		Formula:   s.formula,
	})
}

// DecodeScorecard parses the JSON form produced by MarshalJSON.
func DecodeScorecard(data []byte) (*Scorecard, error) {
	var raw scorecardJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode scorecard: %w", err)
	}
	if raw.SessionID == "" {
		return nil, fmt.Errorf("decode scorecard: missing session_id")
	}
	return RestoreScorecard(raw.SessionID, raw.CreatedAt, raw.Scores, raw.Formula), nil
}
