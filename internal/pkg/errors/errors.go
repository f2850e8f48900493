package errors

import "errors"

// Закрытый набор видов ошибок приложения. Каждый слой оборачивает свою ошибку
// через fmt.Errorf("%w: ...", ErrX, ...), а граница (handler) выбирает HTTP статус
// по errors.Is, не разбирая текст сообщения.
var (
	// ErrInvalidURL: URL не похож на статью Википедии. Сетевой запрос не выполняется.
	ErrInvalidURL = errors.New("invalid wikipedia url")

	// ErrFetch: сетевая ошибка или не-2xx ответ при загрузке статьи.
	ErrFetch = errors.New("failed to fetch article")

	// ErrExtraction: не найдена область контента или очищенный текст слишком короткий.
	ErrExtraction = errors.New("failed to extract article content")

	// ErrGeneration: ошибка вызова модели, неразбираемый ответ или нет обязательных полей.
	ErrGeneration = errors.New("quiz generation failed")

	// ErrValidation используется, когда сгенерированный объект не соответствует схеме викторины.
	ErrValidation = errors.New("validation failed")

	// ErrPersistence: ошибка записи в хранилище.
	ErrPersistence = errors.New("failed to persist quiz")

	// ErrNotFound используется, когда запись или ресурс не найдены.
	ErrNotFound = errors.New("record not found")

	// ErrCorruptRecord: сохранённый payload не десериализуется или не проходит повторную валидацию.
	ErrCorruptRecord = errors.New("stored quiz record is corrupt")
)

// Kinds перечисляет все виды ошибок в порядке стадий конвейера.
var Kinds = []error{
	ErrInvalidURL,
	ErrFetch,
	ErrExtraction,
	ErrGeneration,
	ErrValidation,
	ErrPersistence,
	ErrNotFound,
	ErrCorruptRecord,
}

var kindNames = map[error]string{
	ErrInvalidURL:    "invalid_url",
	ErrFetch:         "fetch_error",
	ErrExtraction:    "extraction_error",
	ErrGeneration:    "generation_error",
	ErrValidation:    "validation_error",
	ErrPersistence:   "persistence_error",
	ErrNotFound:      "not_found",
	ErrCorruptRecord: "corrupt_record",
}

// KindName возвращает машинное имя вида ошибки (для error_type в ответах и меток метрик).
// Для ошибок вне закрытого набора возвращается "internal".
func KindName(err error) string {
	if kind := KindOf(err); kind != nil {
		return kindNames[kind]
	}
	return "internal"
}

// KindOf возвращает вид ошибки из закрытого набора или nil, если err к нему не относится.
func KindOf(err error) error {
	for _, kind := range Kinds {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
