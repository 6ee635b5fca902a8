package chat

import (
	"chat-sync/errors"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Draft is user-authored content handed to the send pipeline.
// Attachments must already be uploaded; the draft only carries URLs.
type Draft struct {
	Conversation ConversationID `validate:"required"`
	Sender       Identity
	Body         string       `validate:"max=4000"`
	Attachments  []Attachment `validate:"dive"`
}

// ValidateDraft checks structural rules plus the one rule tags cannot
// express: a draft needs a body or at least one attachment.
func ValidateDraft(d Draft) error {
	if err := validate.Struct(d); err != nil {
		return err
	}
	if d.Body == "" && len(d.Attachments) == 0 {
		return errors.ErrEmptyDraft
	}
	return nil
}
