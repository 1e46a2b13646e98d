package smtp

import (
	"errors"
	"net/textproto"
)

// IsPermanent сообщает, ответил ли сервер кодом 5xx.
// Повторная отправка такого письма завершится той же ошибкой.
func IsPermanent(err error) bool {
	var protoErr *textproto.Error
	return errors.As(err, &protoErr) && protoErr.Code >= 500 && protoErr.Code < 600
}
