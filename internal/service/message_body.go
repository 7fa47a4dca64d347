package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gorm.io/datatypes"
)

const maxMessageBodyBytes = 64 * 1024

// richTextSchema accepts a Quill delta: an object with an ops array whose
// entries insert either text or an embed.
const richTextSchema = `{
	"type": "object",
	"required": ["ops"],
	"properties": {
		"ops": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["insert"],
				"properties": {
					"insert": {"type": ["string", "object"]},
					"attributes": {"type": "object"}
				}
			}
		}
	}
}`

var richText = jsonschema.MustCompileString("teamchat://schemas/rich-text.json", richTextSchema)

type richTextDocument struct {
	Ops []struct {
		Insert json.RawMessage `json:"insert"`
	} `json:"ops"`
}

// normalizeBody validates a rich-text body and returns it compacted. A body
// without visible content is only accepted when the message carries an image.
func normalizeBody(raw json.RawMessage, hasImage bool) (datatypes.JSON, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: body is required", ErrInvalidInput)
	}
	if len(raw) > maxMessageBodyBytes {
		return nil, fmt.Errorf("%w: body too large", ErrInvalidInput)
	}

	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var document interface{}
	if err := decoder.Decode(&document); err != nil {
		return nil, fmt.Errorf("%w: body is not valid json", ErrInvalidInput)
	}
	if err := richText.Validate(document); err != nil {
		return nil, fmt.Errorf("%w: body is not a rich-text document: %v", ErrInvalidInput, err)
	}

	var parsed richTextDocument
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: body is not a rich-text document", ErrInvalidInput)
	}
	if !hasImage && !hasVisibleContent(parsed) {
		return nil, fmt.Errorf("%w: message is empty", ErrInvalidInput)
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return nil, fmt.Errorf("%w: body is not valid json", ErrInvalidInput)
	}
	return datatypes.JSON(compact.Bytes()), nil
}

func hasVisibleContent(document richTextDocument) bool {
	for _, op := range document.Ops {
		var text string
		if err := json.Unmarshal(op.Insert, &text); err != nil {
			// Embeds such as images or mentions count as content.
			return true
		}
		if strings.TrimSpace(text) != "" {
			return true
		}
	}
	return false
}
