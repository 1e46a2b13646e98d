// Package validate содержит правила проверки полей, которые подписчик вводит в мастере регистрации.
package validate

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/membership-bot/internal/models"
)

var (
	phoneRe  = regexp.MustCompile(`^\+[1-9]\d{7,14}$`)
	handleRe = regexp.MustCompile(`^@[A-Za-z0-9_]{5,32}$`)
	uidRe    = regexp.MustCompile(`^\d{10}$`)
	emailRe  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// Phone номер в формате, близком к E.164: '+', затем 8-15 цифр без ведущего нуля.
func Phone(s string) bool {
	return phoneRe.MatchString(s)
}

// Handle ник вида @name, 5-32 символа из букв, цифр и '_'.
func Handle(s string) bool {
	return handleRe.MatchString(s)
}

// BitgetUID ровно 10 цифр.
func BitgetUID(s string) bool {
	return uidRe.MatchString(s)
}

// Email простая проверка local@domain.tld.
func Email(s string) bool {
	return emailRe.MatchString(s)
}

// NormalizeEmail приводит адрес к виду, в котором он хранится.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NewValidator возвращает validator со зарегистрированными тегами
// phone, handle, bitgetuid и plan для проверки HTTP-запросов.
func NewValidator() *validator.Validate {
	v := validator.New()
	register := func(tag string, fn func(string) bool) {
		// теги регистрируются один раз при старте, ошибка возможна только при пустом имени
		_ = v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			return s == "" || fn(s)
		})
	}
	register("phone", Phone)
	register("handle", Handle)
	register("bitgetuid", BitgetUID)
	register("plan", func(s string) bool {
		_, err := models.ParsePlan(s)
		return err == nil
	})
	return v
}
