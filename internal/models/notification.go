package models

// AdminNotification сообщение для административного чата.
type AdminNotification struct {
	Text string `json:"text"`
}

// EmailNotification письмо подписчику, передаётся через очередь.
type EmailNotification struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}
