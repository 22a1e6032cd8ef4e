package push

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nativesixs/fullstack-exercise-sub000/pkg/models"
)

// ChangeCreated is the envelope change type carrying a newly created comment.
const ChangeCreated = "created"

var ErrMalformed = errors.New("malformed push message")

// Codec turns an inbound frame into a comment. ok is false for well-formed frames
// that carry nothing to deliver.
type Codec interface {
	Decode(data []byte) (c models.Comment, ok bool, err error)
}

// RawCodec reads frames that are a bare JSON comment, as the live backend sends them.
type RawCodec struct{}

func (RawCodec) Decode(data []byte) (models.Comment, bool, error) {
	var c models.Comment
	if err := json.Unmarshal(data, &c); err != nil {
		return models.Comment{}, false, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := validate(c); err != nil {
		return models.Comment{}, false, err
	}
	return c, true, nil
}

// Envelope wraps comments on the development backend's stream.
type Envelope struct {
	ChangeType string         `json:"changeType"`
	Comment    models.Comment `json:"comment"`
}

// EnvelopeCodec reads Envelope frames and delivers only created comments.
type EnvelopeCodec struct{}

func (EnvelopeCodec) Decode(data []byte) (models.Comment, bool, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return models.Comment{}, false, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.ChangeType != ChangeCreated {
		return models.Comment{}, false, nil
	}
	if err := validate(env.Comment); err != nil {
		return models.Comment{}, false, err
	}
	return env.Comment, true, nil
}

func validate(c models.Comment) error {
	if c.ID == "" {
		return fmt.Errorf("%w: missing commentId", ErrMalformed)
	}
	if c.ArticleID == "" {
		return fmt.Errorf("%w: missing articleId", ErrMalformed)
	}
	return nil
}

// NewCodec returns the codec for a configured transport mode: "mock" selects
// EnvelopeCodec, anything else RawCodec.
func NewCodec(mode string) Codec {
	if mode == "mock" {
		return EnvelopeCodec{}
	}
	return RawCodec{}
}
