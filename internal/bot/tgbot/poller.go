package tgbot

import (
	"context"
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/thejerf/suture/v4"
)

// UpdateSource long polling Bot API.
type UpdateSource interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Poller получает обновления и передаёт их Router. Реализует suture.Service.
// Поток обновлений открывается один раз и переживает перезапуски Serve,
// закрывается только через Stop.
type Poller struct {
	source UpdateSource
	router *Router

	startOnce sync.Once
	stopOnce  sync.Once
	started   bool
	updates   tgbotapi.UpdatesChannel
}

// NewPoller создаёт поллер.
func NewPoller(source UpdateSource, router *Router) *Poller {
	return &Poller{source: source, router: router}
}

func (p *Poller) stream() tgbotapi.UpdatesChannel {
	p.startOnce.Do(func() {
		u := tgbotapi.NewUpdate(0)
		u.Timeout = 60
		p.updates = p.source.GetUpdatesChan(u)
		p.started = true
	})
	return p.updates
}

// Serve читает обновления до отмены ctx.
func (p *Poller) Serve(ctx context.Context) error {
	updates := p.stream()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case upd, ok := <-updates:
			if !ok {
				return fmt.Errorf("telegram updates stopped: %w", suture.ErrDoNotRestart)
			}
			p.router.HandleUpdate(ctx, upd)
		}
	}
}

// Stop закрывает поток обновлений. Вызывается при завершении процесса.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		p.startOnce.Do(func() {})
		if p.started {
			p.source.StopReceivingUpdates()
		}
	})
}

func (p *Poller) String() string {
	return "telegram-poller"
}
