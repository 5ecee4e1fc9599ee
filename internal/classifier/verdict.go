package classifier

import "errors"

type Status string

const (
	StatusOK      Status = "ok"
	StatusInvalid Status = "invalid"
	StatusError   Status = "error"
)

var ErrLowConfidence = errors.New("confidence below threshold")

// Verdict is the result of one classification. OK verdicts carry the label and
// its guidance; invalid and error verdicts carry only Message.
type Verdict struct {
	Status      Status             `json:"status"`
	Label       string             `json:"label,omitempty"`
	Confidence  float64            `json:"confidence,omitempty"`
	Description string             `json:"description,omitempty"`
	Solution    string             `json:"solution,omitempty"`
	Message     string             `json:"message,omitempty"`
	Scores      map[string]float32 `json:"scores,omitempty"`

	// Err is the underlying cause for invalid and error verdicts.
	Err error `json:"-"`
}

func (v Verdict) OK() bool { return v.Status == StatusOK }

func okVerdict(p Prediction, description, solution string) Verdict {
	return Verdict{
		Status:      StatusOK,
		Label:       p.Label,
		Confidence:  float64(p.Confidence),
		Description: description,
		Solution:    solution,
		Scores:      p.Scores,
	}
}

func invalidVerdict(msg string, err error) Verdict {
	return Verdict{Status: StatusInvalid, Message: msg, Err: err}
}

func errorVerdict(err error) Verdict {
	return Verdict{Status: StatusError, Message: err.Error(), Err: err}
}
