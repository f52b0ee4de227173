package questions

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/reoverflow/internal/apperr"
)

// Field limits.
const (
	MaxTitleLength = 250
	MaxTags        = 5
)

// QuestionInput carries the client-editable fields of a question.
type QuestionInput struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Tags    []string `json:"tags"`
}

// Validate checks the shape of the input. Tag membership is checked
// separately against the catalog.
func (in *QuestionInput) Validate() error {
	return validation.ValidateStruct(in,
		validation.Field(&in.Title, validation.Required, validation.Length(1, MaxTitleLength)),
		validation.Field(&in.Content, validation.Required),
		validation.Field(&in.Tags, validation.Required, validation.Length(1, MaxTags), validation.Each(validation.Required)),
	)
}

// AnswerInput carries the client-editable fields of an answer.
type AnswerInput struct {
	Content string `json:"content"`
}

// Validate checks the shape of the input.
func (in *AnswerInput) Validate() error {
	return validation.ValidateStruct(in,
		validation.Field(&in.Content, validation.Required),
	)
}

type validatable interface {
	Validate() error
}

func validate(op string, in validatable) error {
	if err := in.Validate(); err != nil {
		return apperr.Wrap(apperr.CodeValidation, op, err)
	}
	return nil
}
