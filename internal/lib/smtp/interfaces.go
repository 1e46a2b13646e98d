// Package smtp предоставляет транспорт для отправки писем подписчикам.
package smtp

import "io"

// Client интерфейс для SMTP клиента.
type Client interface {
	Mail(from string) error
	Rcpt(to string) error
	Data() (io.WriteCloser, error)
	Quit() error
	Close() error
}

// TransportInterface устанавливает соединение и знает адрес отправителя.
type TransportInterface interface {
	Connect() (Client, error)
	Sender() string
}
