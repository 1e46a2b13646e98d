package models

// Outcome результат вызова внешнего шлюза (Telegram, Discord).
type Outcome string

const (
	// OutcomeOK вызов выполнен.
	OutcomeOK Outcome = "ok"
	// OutcomeSkipped вызов не требовался: нет привязанного аккаунта или шлюз отключён.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeFailed вызов завершился ошибкой.
	OutcomeFailed Outcome = "failed"
)
