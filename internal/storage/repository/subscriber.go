package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/magabrotheeeer/membership-bot/internal/models"
)

const (
	uniqueViolation         = "23505"
	verifyCodeConstraint    = "subscribers_verify_code_key"
	subscriberSelectColumns = `id, email, phone, telegram_nick, discord_nick, bitget_uid,
		telegram_user_id, discord_user_id, verify_code, plan, start_date, expires_at,
		status, link_reminder_at, created_at, updated_at`
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscriber(row rowScanner) (*models.Subscriber, error) {
	var (
		s          models.Subscriber
		tgUserID   sql.NullInt64
		dcUserID   sql.NullString
		plan       sql.NullString
		startDate  sql.NullTime
		expiresAt  sql.NullTime
		reminderAt sql.NullTime
		status     string
	)
	err := row.Scan(&s.ID, &s.Email, &s.Phone, &s.TelegramNick, &s.DiscordNick, &s.BitgetUID,
		&tgUserID, &dcUserID, &s.VerifyCode, &plan, &startDate, &expiresAt,
		&status, &reminderAt, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if tgUserID.Valid {
		s.TelegramUserID = &tgUserID.Int64
	}
	if dcUserID.Valid {
		s.DiscordUserID = &dcUserID.String
	}
	if plan.Valid {
		p := models.Plan(plan.String)
		s.Plan = &p
	}
	if startDate.Valid {
		s.StartDate = &startDate.Time
	}
	if expiresAt.Valid {
		s.ExpiresAt = &expiresAt.Time
	}
	if reminderAt.Valid {
		s.LinkReminderAt = &reminderAt.Time
	}
	s.Status = models.Status(status)
	return &s, nil
}

func nullPlan(p *models.Plan) sql.NullString {
	if p == nil || *p == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*p), Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil || *v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

// isVerifyCodeConflict отличает коллизию кода от прочих нарушений уникальности.
func isVerifyCodeConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == uniqueViolation && pgErr.ConstraintName == verifyCodeConstraint
}

// UpsertByEmail создаёт подписчика или обновляет существующего с тем же email.
// Код привязки у существующей записи не меняется. Пустые id платформ и тариф
// не затирают уже сохранённые значения. Статус существующей записи меняет
// только сверка, иначе ограничения замороженного подписчика не будут сняты.
// Возвращает id и действующий код.
func (s *Storage) UpsertByEmail(ctx context.Context, sub *models.Subscriber) (string, string, error) {
	const op = "storage.UpsertByEmail"
	select {
	case <-ctx.Done():
		return "", "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	status := sub.Status
	if status == "" {
		status = models.StatusActive
	}

	query := `INSERT INTO subscribers (id, email, phone, telegram_nick, discord_nick, bitget_uid,
				telegram_user_id, discord_user_id, verify_code, plan, start_date, expires_at, status)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			  ON CONFLICT (email) DO UPDATE SET
				phone = EXCLUDED.phone,
				telegram_nick = EXCLUDED.telegram_nick,
				discord_nick = EXCLUDED.discord_nick,
				bitget_uid = EXCLUDED.bitget_uid,
				telegram_user_id = COALESCE(EXCLUDED.telegram_user_id, subscribers.telegram_user_id),
				discord_user_id = COALESCE(EXCLUDED.discord_user_id, subscribers.discord_user_id),
				plan = COALESCE(EXCLUDED.plan, subscribers.plan),
				start_date = COALESCE(EXCLUDED.start_date, subscribers.start_date),
				expires_at = COALESCE(EXCLUDED.expires_at, subscribers.expires_at),
				updated_at = NOW()
			  RETURNING id, verify_code`

	var id, verifyCode string
	err := s.DB.QueryRowContext(ctx, query,
		uuid.New().String(), sub.Email, sub.Phone, sub.TelegramNick, sub.DiscordNick, sub.BitgetUID,
		nullInt64(sub.TelegramUserID), nullString(sub.DiscordUserID), sub.VerifyCode,
		nullPlan(sub.Plan), nullTime(sub.StartDate), nullTime(sub.ExpiresAt), string(status),
	).Scan(&id, &verifyCode)
	if err != nil {
		if isVerifyCodeConflict(err) {
			return "", "", fmt.Errorf("%s: %w", op, ErrVerifyCodeConflict)
		}
		return "", "", fmt.Errorf("%s: %w", op, err)
	}
	return id, verifyCode, nil
}

func (s *Storage) findOne(ctx context.Context, op, where string, arg any) (*models.Subscriber, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + subscriberSelectColumns + ` FROM subscribers WHERE ` + where
	sub, err := scanSubscriber(s.DB.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrSubscriberNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

// FindByVerifyCode ищет подписчика по коду привязки.
func (s *Storage) FindByVerifyCode(ctx context.Context, code string) (*models.Subscriber, error) {
	return s.findOne(ctx, "storage.FindByVerifyCode", "verify_code = $1", code)
}

// FindByEmail ищет подписчика по email.
func (s *Storage) FindByEmail(ctx context.Context, email string) (*models.Subscriber, error) {
	return s.findOne(ctx, "storage.FindByEmail", "email = $1", email)
}

// FindByTelegramUserID возвращает последнюю обновлённую запись с этим аккаунтом Telegram.
func (s *Storage) FindByTelegramUserID(ctx context.Context, telegramUserID int64) (*models.Subscriber, error) {
	return s.findOne(ctx, "storage.FindByTelegramUserID",
		"telegram_user_id = $1 ORDER BY updated_at DESC LIMIT 1", telegramUserID)
}

// ListAll возвращает всех подписчиков без пагинации.
func (s *Storage) ListAll(ctx context.Context) ([]models.Subscriber, error) {
	const op = "storage.ListAll"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT `+subscriberSelectColumns+` FROM subscribers ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var result []models.Subscriber
	for rows.Next() {
		sub, err := scanSubscriber(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

func (s *Storage) execOne(ctx context.Context, op, query string, args ...any) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	result, err := s.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, ErrSubscriberNotFound)
	}
	return nil
}

// SetExpiresAt записывает дату окончания (используется для дозаполнения).
func (s *Storage) SetExpiresAt(ctx context.Context, id string, expiresAt time.Time) error {
	return s.execOne(ctx, "storage.SetExpiresAt",
		`UPDATE subscribers SET expires_at = $2, updated_at = NOW() WHERE id = $1`, id, expiresAt)
}

// SetStatus меняет статус доступа.
func (s *Storage) SetStatus(ctx context.Context, id string, status models.Status) error {
	return s.execOne(ctx, "storage.SetStatus",
		`UPDATE subscribers SET status = $2, updated_at = NOW() WHERE id = $1`, id, string(status))
}

// SetTelegramUserID привязывает аккаунт Telegram.
func (s *Storage) SetTelegramUserID(ctx context.Context, id string, telegramUserID int64) error {
	return s.execOne(ctx, "storage.SetTelegramUserID",
		`UPDATE subscribers SET telegram_user_id = $2, updated_at = NOW() WHERE id = $1`, id, telegramUserID)
}

// SetDiscordUserID привязывает аккаунт Discord.
func (s *Storage) SetDiscordUserID(ctx context.Context, id string, discordUserID string) error {
	return s.execOne(ctx, "storage.SetDiscordUserID",
		`UPDATE subscribers SET discord_user_id = $2, updated_at = NOW() WHERE id = $1`, id, discordUserID)
}

// MarkLinkReminded запоминает время последнего напоминания о привязке.
func (s *Storage) MarkLinkReminded(ctx context.Context, id string, at time.Time) error {
	return s.execOne(ctx, "storage.MarkLinkReminded",
		`UPDATE subscribers SET link_reminder_at = $2 WHERE id = $1`, id, at)
}

// SetPlan назначает тариф по email и пересчитывает даты. Статус не трогает:
// замороженного подписчика с новой датой окончания разморозит ближайшая сверка.
func (s *Storage) SetPlan(ctx context.Context, email string, plan models.Plan, start, expiresAt time.Time) (*models.Subscriber, error) {
	const op = "storage.SetPlan"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE subscribers
			  SET plan = $2, start_date = $3, expires_at = $4, updated_at = NOW()
			  WHERE email = $1
			  RETURNING ` + subscriberSelectColumns
	sub, err := scanSubscriber(s.DB.QueryRowContext(ctx, query,
		email, string(plan), start, expiresAt))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrSubscriberNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}
