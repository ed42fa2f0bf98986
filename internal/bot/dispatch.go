package bot

import (
	"context"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const chatQueueSize = 16

// dispatcher runs updates of different chats concurrently and updates of
// the same chat one at a time, in arrival order.
type dispatcher struct {
	handle func(ctx context.Context, update tgbotapi.Update)

	mu     sync.Mutex
	queues map[int64]chan tgbotapi.Update
	wg     sync.WaitGroup
}

func newDispatcher(handle func(ctx context.Context, update tgbotapi.Update)) *dispatcher {
	return &dispatcher{handle: handle, queues: make(map[int64]chan tgbotapi.Update)}
}

// dispatch queues update for its chat, starting the chat's worker on first
// use. It blocks while the chat's queue is full.
func (d *dispatcher) dispatch(ctx context.Context, update tgbotapi.Update) {
	chatID, ok := updateChatID(update)
	if !ok {
		return
	}
	d.mu.Lock()
	q, ok := d.queues[chatID]
	if !ok {
		q = make(chan tgbotapi.Update, chatQueueSize)
		d.queues[chatID] = q
		d.wg.Add(1)
		go d.work(ctx, q)
	}
	d.mu.Unlock()

	select {
	case q <- update:
	case <-ctx.Done():
	}
}

func (d *dispatcher) work(ctx context.Context, q <-chan tgbotapi.Update) {
	defer d.wg.Done()
	for update := range q {
		d.handle(ctx, update)
	}
}

// close stops accepting updates and waits for queued ones to be handled.
func (d *dispatcher) close() {
	d.mu.Lock()
	for id, q := range d.queues {
		close(q)
		delete(d.queues, id)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func updateChatID(update tgbotapi.Update) (int64, bool) {
	switch {
	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil && update.CallbackQuery.Message.Chat != nil:
		return update.CallbackQuery.Message.Chat.ID, true
	case update.Message != nil && update.Message.Chat != nil:
		return update.Message.Chat.ID, true
	}
	return 0, false
}
