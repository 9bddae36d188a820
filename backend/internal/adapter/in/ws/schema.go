package ws

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed messages.schema.json
var clientMessageSchemaJSON string

const clientMessageSchemaURL = "https://x-garden.local/schemas/client-message.schema.json"

// MessageValidator проверяет входящие сообщения по JSON схеме
type MessageValidator struct {
	schema *jsonschema.Schema
}

// NewMessageValidator компилирует встроенную схему сообщений
func NewMessageValidator() (*MessageValidator, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(clientMessageSchemaURL, strings.NewReader(clientMessageSchemaJSON)); err != nil {
		return nil, fmt.Errorf("ошибка загрузки схемы: %w", err)
	}
	schema, err := compiler.Compile(clientMessageSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("ошибка компиляции схемы: %w", err)
	}
	return &MessageValidator{schema: schema}, nil
}

// Decode проверяет сырое сообщение и разбирает его
func (v *MessageValidator) Decode(data []byte) (*ClientMessage, error) {
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("некорректный JSON: %w", err)
	}
	if err := v.schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("сообщение не соответствует схеме: %w", err)
	}

	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("ошибка разбора сообщения: %w", err)
	}
	return &msg, nil
}
