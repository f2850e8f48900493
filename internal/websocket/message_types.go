package websocket

// Типы сообщений конвейера генерации
const (
	// PIPELINE_STATE сообщает о переходе конвейера (fetched, extracted, ...)
	PIPELINE_STATE = "PIPELINE_STATE"

	// QUIZ_READY содержит сохранённую викторину, после него соединение закрывается
	QUIZ_READY = "QUIZ_READY"

	// PIPELINE_ERROR сообщает об отказе стадии, после него соединение закрывается
	PIPELINE_ERROR = "PIPELINE_ERROR"
)

// Message - конверт каждого сообщения сервера
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// GenerateRequest - первое сообщение клиента
type GenerateRequest struct {
	URL string `json:"url"`
}
