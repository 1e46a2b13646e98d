// Package wizard реализует пошаговый мастер регистрации подписчика в чате.
// Мастер собирает поля по одному, проверяет каждое и в конце сохраняет
// подписчика с новым кодом привязки.
package wizard

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/membership-bot/internal/lib/sl"
	"github.com/magabrotheeeer/membership-bot/internal/lib/validate"
	"github.com/magabrotheeeer/membership-bot/internal/models"
)

// Поля мастера в порядке запроса.
const (
	FieldPhone        = "phone"
	FieldTelegramNick = "telegramNick"
	FieldDiscordNick  = "discordNick"
	FieldBitgetUID    = "bitgetUid"
	FieldEmail        = "email"
	FieldPlan         = "plan"
)

// Registrar сохраняет подписчика и выдаёт код привязки.
type Registrar interface {
	Register(ctx context.Context, sub *models.Subscriber) (id string, verifyCode string, err error)
}

// Config настройки мастера.
type Config struct {
	// HasPlanStep добавляет последний шаг выбора тарифа кнопками.
	HasPlanStep bool
}

// Reply ответ мастера пользователю.
type Reply struct {
	Text string
	// AskPlan показать кнопки выбора тарифа.
	AskPlan bool
	// Done регистрация завершена, Code содержит код привязки.
	Done bool
	Code string
}

type step struct {
	field  string
	prompt string
	hint   string
	valid  func(string) bool
}

var textSteps = []step{
	{
		field:  FieldPhone,
		prompt: "Send your phone number in international format (e.g. +393331234567).",
		hint:   "Invalid phone number. Use the international format: '+' followed by 8 to 15 digits.",
		valid:  validate.Phone,
	},
	{
		field:  FieldTelegramNick,
		prompt: "Send your Telegram username (e.g. @trader_01).",
		hint:   "Invalid username. It must start with '@' and contain 5 to 32 letters, digits or '_'.",
		valid:  validate.Handle,
	},
	{
		field:  FieldDiscordNick,
		prompt: "Send your Discord username (e.g. @trader_01).",
		hint:   "Invalid username. It must start with '@' and contain 5 to 32 letters, digits or '_'.",
		valid:  validate.Handle,
	},
	{
		field:  FieldBitgetUID,
		prompt: "Send your Bitget UID (10 digits).",
		hint:   "Invalid Bitget UID. It must be exactly 10 digits.",
		valid:  validate.BitgetUID,
	},
	{
		field:  FieldEmail,
		prompt: "Send your email address.",
		hint:   "Invalid email. Use the name@domain.tld format.",
		valid:  validate.Email,
	},
}

const (
	planPrompt     = "Choose your plan:"
	planButtonHint = "Please choose a plan using the buttons below."
	noSessionText  = "Your registration session has expired. Send /start to begin again."
	notOnPlanText  = "Please complete the previous steps first."
	badPlanText    = "Unknown plan, please use the buttons."
)

// Service мастер регистрации.
type Service struct {
	registrar Registrar
	sessions  SessionStore
	log       *slog.Logger
	cfg       Config
	now       func() time.Time
}

// New создаёт мастер регистрации.
func New(registrar Registrar, sessions SessionStore, cfg Config, log *slog.Logger) *Service {
	return &Service{
		registrar: registrar,
		sessions:  sessions,
		log:       log,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *Service) planStep() int {
	return len(textSteps)
}

// Start начинает регистрацию заново, отбрасывая незавершённую сессию.
func (s *Service) Start(ctx context.Context, chatID int64) (Reply, error) {
	const op = "wizard.Start"

	if err := s.sessions.Delete(ctx, chatID); err != nil {
		return Reply{}, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.sessions.Save(ctx, chatID, newSession()); err != nil {
		return Reply{}, fmt.Errorf("%s: %w", op, err)
	}
	return Reply{Text: "Welcome! Let's register your membership.\n" + textSteps[0].prompt}, nil
}

// Restart явный сброс, эквивалент Start.
func (s *Service) Restart(ctx context.Context, chatID int64) (Reply, error) {
	reply, err := s.Start(ctx, chatID)
	if err != nil {
		return Reply{}, err
	}
	reply.Text = "Registration restarted.\n" + textSteps[0].prompt
	return reply, nil
}

// HandleText обрабатывает очередное текстовое сообщение. Если сессии нет,
// сообщение игнорируется и handled=false.
func (s *Service) HandleText(ctx context.Context, chatID, userID int64, text string) (reply Reply, handled bool, err error) {
	const op = "wizard.HandleText"

	sess, ok, err := s.sessions.Get(ctx, chatID)
	if err != nil {
		return Reply{}, false, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return Reply{}, false, nil
	}

	if sess.Step >= s.planStep() {
		// без шага тарифа сессия здесь уже удалена
		return Reply{Text: planButtonHint, AskPlan: true}, true, nil
	}

	cur := textSteps[sess.Step]
	if !cur.valid(text) {
		return Reply{Text: cur.hint}, true, nil
	}

	value := text
	if cur.field == FieldEmail {
		value = validate.NormalizeEmail(text)
	}
	sess.Fields[cur.field] = value
	sess.Step++

	if sess.Step < s.planStep() {
		if err := s.sessions.Save(ctx, chatID, sess); err != nil {
			return Reply{}, true, fmt.Errorf("%s: %w", op, err)
		}
		return Reply{Text: textSteps[sess.Step].prompt}, true, nil
	}

	if s.cfg.HasPlanStep {
		if err := s.sessions.Save(ctx, chatID, sess); err != nil {
			return Reply{}, true, fmt.Errorf("%s: %w", op, err)
		}
		return Reply{Text: planPrompt, AskPlan: true}, true, nil
	}

	reply, err = s.complete(ctx, chatID, userID, sess, nil)
	if err != nil {
		return Reply{}, true, fmt.Errorf("%s: %w", op, err)
	}
	return reply, true, nil
}

// SelectPlan принимает выбор тарифа из кнопок и завершает регистрацию.
func (s *Service) SelectPlan(ctx context.Context, chatID, userID int64, rawPlan string) (Reply, error) {
	const op = "wizard.SelectPlan"

	sess, ok, err := s.sessions.Get(ctx, chatID)
	if err != nil {
		return Reply{}, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return Reply{Text: noSessionText}, nil
	}
	if !s.cfg.HasPlanStep || sess.Step != s.planStep() {
		return Reply{Text: notOnPlanText}, nil
	}

	plan, err := models.ParsePlan(rawPlan)
	if err != nil {
		return Reply{Text: badPlanText, AskPlan: true}, nil
	}

	reply, err := s.complete(ctx, chatID, userID, sess, &plan)
	if err != nil {
		return Reply{}, fmt.Errorf("%s: %w", op, err)
	}
	return reply, nil
}

func (s *Service) complete(ctx context.Context, chatID, userID int64, sess *Session, plan *models.Plan) (Reply, error) {
	sub := &models.Subscriber{
		Email:        sess.Fields[FieldEmail],
		Phone:        sess.Fields[FieldPhone],
		TelegramNick: sess.Fields[FieldTelegramNick],
		DiscordNick:  sess.Fields[FieldDiscordNick],
		BitgetUID:    sess.Fields[FieldBitgetUID],
		Status:       models.StatusActive,
	}
	if userID != 0 {
		sub.TelegramUserID = &userID
	}
	if plan != nil {
		if err := sub.ApplyPlan(*plan, s.now()); err != nil {
			return Reply{}, err
		}
	}

	_, storedCode, err := s.registrar.Register(ctx, sub)
	if err != nil {
		return Reply{}, err
	}

	if err := s.sessions.Delete(ctx, chatID); err != nil {
		s.log.Warn("failed to clear wizard session", slog.Int64("chat_id", chatID), sl.Err(err))
	}

	text := fmt.Sprintf("Registration complete!\nYour code: %s\n"+
		"Use /link %s here and !link %s on Discord to connect your accounts.", storedCode, storedCode, storedCode)
	if sub.ExpiresAt != nil {
		text += fmt.Sprintf("\nPlan: %s, expires on %s.", *sub.Plan, sub.ExpiresAt.Format("2006-01-02"))
	}
	return Reply{Text: text, Done: true, Code: storedCode}, nil
}
