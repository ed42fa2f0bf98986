package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"task-manager/internal/model"
	"task-manager/internal/service"
	"task-manager/internal/view"
)

func (b *Bot) handleCategories(ctx context.Context, msg *tgbotapi.Message, ws *service.Workspace) error {
	categories, err := ws.Categories.Load(ctx)
	if err != nil {
		return b.sendText(msg.Chat.ID, view.Error(ws.Categories.State().Err))
	}
	ids := make([]string, len(categories))
	for i, c := range categories {
		ids[i] = c.ID
	}
	b.setSnapshot(msg.Chat.ID, func(s *snapshot) { s.categories = ids })
	return b.sendText(msg.Chat.ID, view.Categories(categories))
}

func (b *Bot) handleNewCategory(ctx context.Context, msg *tgbotapi.Message, ws *service.Workspace) error {
	name := strings.TrimSpace(msg.CommandArguments())
	if name == "" {
		return b.sendText(msg.Chat.ID, "Usage: /newcategory name")
	}
	for _, existing := range ws.Categories.Names() {
		if strings.EqualFold(existing, name) {
			return b.sendText(msg.Chat.ID, fmt.Sprintf("Category “%s” already exists.", escape(existing)))
		}
	}
	category, err := ws.Categories.Add(ctx, name)
	if err != nil {
		return b.sendText(msg.Chat.ID, view.Error(ws.Categories.State().Err))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("📂 Category “%s” created.", escape(category.Name)))
}

func (b *Bot) categoryAt(chatID int64, ws *service.Workspace, arg string) (model.Category, error) {
	ids := b.getSnapshot(chatID).categories
	i, err := rowIndex(arg, len(ids))
	if err != nil {
		return model.Category{}, fmt.Errorf("%v. Show your categories with /categories", err)
	}
	c, ok := ws.Categories.Find(ids[i])
	if !ok {
		return model.Category{}, fmt.Errorf("category %d is gone. Show your categories again with /categories", i+1)
	}
	return c, nil
}

func (b *Bot) handleRenameCategory(ctx context.Context, msg *tgbotapi.Message, ws *service.Workspace) error {
	args := splitArgs(msg.CommandArguments(), 2)
	if len(args) < 2 {
		return b.sendText(msg.Chat.ID, "Usage: /renamecategory n new name")
	}
	c, err := b.categoryAt(msg.Chat.ID, ws, args[0])
	if err != nil {
		return b.sendText(msg.Chat.ID, escape(err.Error()))
	}
	renamed, err := ws.Categories.Rename(ctx, c.ID, args[1])
	if err != nil {
		return b.sendText(msg.Chat.ID, view.Error(ws.Categories.State().Err))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("📂 “%s” renamed to “%s”.", escape(c.Name), escape(renamed.Name)))
}

func (b *Bot) handleDeleteCategory(ctx context.Context, msg *tgbotapi.Message, ws *service.Workspace) error {
	c, err := b.categoryAt(msg.Chat.ID, ws, msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, escape(err.Error()))
	}
	b.setConfirmation(msg.Chat.ID, confirmationRequest{action: actionDeleteCategory, id: c.ID, label: c.Name})
	return b.sendWithReplyMarkup(msg.Chat.ID, fmt.Sprintf("Delete category “%s”? Tasks keep their category text.", escape(c.Name)), confirmKeyboard())
}

func (b *Bot) handleLists(ctx context.Context, msg *tgbotapi.Message, ws *service.Workspace) error {
	lists, err := ws.Lists.Load(ctx)
	if err != nil {
		return b.sendText(msg.Chat.ID, view.Error(ws.Lists.State().Err))
	}
	ids := make([]string, len(lists))
	for i, l := range lists {
		ids[i] = l.ID
	}
	b.setSnapshot(msg.Chat.ID, func(s *snapshot) { s.lists = ids })

	uid := ""
	if user := ws.Session.User(); user != nil {
		uid = user.ID
	}
	return b.sendText(msg.Chat.ID, view.Lists(lists, uid))
}

func (b *Bot) handleNewList(ctx context.Context, msg *tgbotapi.Message, ws *service.Workspace) error {
	name := strings.TrimSpace(msg.CommandArguments())
	if name == "" {
		return b.sendText(msg.Chat.ID, "Usage: /newlist name")
	}
	list, err := ws.Lists.Add(ctx, name)
	if err != nil {
		return b.sendText(msg.Chat.ID, view.Error(ws.Lists.State().Err))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("🗂 List “%s” created. Show it with /lists.", escape(list.Name)))
}

func (b *Bot) handleRenameList(ctx context.Context, msg *tgbotapi.Message, ws *service.Workspace) error {
	args := splitArgs(msg.CommandArguments(), 2)
	if len(args) < 2 {
		return b.sendText(msg.Chat.ID, "Usage: /renamelist n new name")
	}
	list, err := b.listAt(msg.Chat.ID, ws, args[0])
	if err != nil {
		return b.sendText(msg.Chat.ID, escape(err.Error()))
	}
	renamed, err := ws.Lists.Rename(ctx, list.ID, args[1])
	if err != nil {
		return b.sendText(msg.Chat.ID, view.Error(ws.Lists.State().Err))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("🗂 “%s” renamed to “%s”.", escape(list.Name), escape(renamed.Name)))
}

func (b *Bot) listAt(chatID int64, ws *service.Workspace, arg string) (model.List, error) {
	ids := b.getSnapshot(chatID).lists
	i, err := rowIndex(arg, len(ids))
	if err != nil {
		return model.List{}, fmt.Errorf("%v. Show your lists with /lists", err)
	}
	l, ok := ws.Lists.Find(ids[i])
	if !ok {
		return model.List{}, fmt.Errorf("list %d is gone. Show your lists again with /lists", i+1)
	}
	return l, nil
}

func (b *Bot) handleListDetail(ctx context.Context, msg *tgbotapi.Message, ws *service.Workspace) error {
	list, err := b.listAt(msg.Chat.ID, ws, msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, escape(err.Error()))
	}
	return b.sendListDetail(ctx, msg.Chat.ID, ws, list)
}

func (b *Bot) sendListDetail(ctx context.Context, chatID int64, ws *service.Workspace, list model.List) error {
	items, err := ws.ListItems.Load(ctx, list.ID)
	if err != nil {
		return b.sendText(chatID, view.Error(ws.ListItems.State().Err))
	}
	collaborators, err := ws.Collaborators.Load(ctx, list.ID)
	if err != nil {
		return b.sendText(chatID, view.Error(ws.Collaborators.State().Err))
	}
	itemIDs := make([]string, len(items))
	for i, it := range items {
		itemIDs[i] = it.ID
	}
	ids := make([]string, len(collaborators))
	for i, c := range collaborators {
		ids[i] = c.ID
	}
	b.setSnapshot(chatID, func(s *snapshot) {
		s.itemsList = list.ID
		s.items = itemIDs
		s.collaborators = ids
	})
	return b.sendText(chatID, view.ListDetail(list, items, collaborators))
}

func (b *Bot) handleAddItem(ctx context.Context, msg *tgbotapi.Message, ws *service.Workspace) error {
	args := strings.Fields(msg.CommandArguments())
	if len(args) != 2 {
		return b.sendText(msg.Chat.ID, "Usage: /additem list task (numbers from /lists and /tasks)")
	}
	list, err := b.listAt(msg.Chat.ID, ws, args[0])
	if err != nil {
		return b.sendText(msg.Chat.ID, escape(err.Error()))
	}
	_, task, err := b.taskAt(msg.Chat.ID, ws, args[1])
	if err != nil {
		return b.sendText(msg.Chat.ID, escape(err.Error()))
	}
	if _, err := ws.ListItems.Add(ctx, list.ID, task.ID, task.Title); err != nil {
		return b.sendText(msg.Chat.ID, view.Error(ws.ListItems.State().Err))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("➕ “%s” added to “%s”.", escape(task.Title), escape(list.Name)))
}

// handleItemToggle flips the completion of item n of a list, numbered as in
// the last /list reply for that list.
func (b *Bot) handleItemToggle(ctx context.Context, msg *tgbotapi.Message, ws *service.Workspace) error {
	args := strings.Fields(msg.CommandArguments())
	if len(args) != 2 {
		return b.sendText(msg.Chat.ID, "Usage: /item list n (n from /list)")
	}
	list, err := b.listAt(msg.Chat.ID, ws, args[0])
	if err != nil {
		return b.sendText(msg.Chat.ID, escape(err.Error()))
	}
	snap := b.getSnapshot(msg.Chat.ID)
	if snap.itemsList != list.ID {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Show the list with /list %s first.", escape(args[0])))
	}
	i, err := rowIndex(args[1], len(snap.items))
	if err != nil {
		return b.sendText(msg.Chat.ID, escape(fmt.Sprintf("%v. Show the list with /list %s", err, args[0])))
	}
	item, ok := ws.ListItems.Find(snap.items[i])
	if !ok {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Item %d is gone. Show the list again with /list %s", i+1, escape(args[0])))
	}
	if _, err := ws.ListItems.SetCompleted(ctx, item.ID, !item.Completed); err != nil {
		return b.sendText(msg.Chat.ID, view.Error(ws.ListItems.State().Err))
	}
	return b.sendListDetail(ctx, msg.Chat.ID, ws, list)
}

func (b *Bot) handleShare(ctx context.Context, msg *tgbotapi.Message, ws *service.Workspace) error {
	args := strings.Fields(msg.CommandArguments())
	if len(args) != 2 {
		return b.sendText(msg.Chat.ID, "Usage: /share list email")
	}
	list, err := b.listAt(msg.Chat.ID, ws, args[0])
	if err != nil {
		return b.sendText(msg.Chat.ID, escape(err.Error()))
	}
	c, err := ws.Collaborators.Add(ctx, list.ID, args[1])
	if err != nil {
		return b.sendText(msg.Chat.ID, view.Error(ws.Collaborators.State().Err))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("🤝 “%s” shared with %s.", escape(list.Name), escape(c.Email)))
}

func (b *Bot) handleUnshare(ctx context.Context, msg *tgbotapi.Message, ws *service.Workspace) error {
	args := strings.Fields(msg.CommandArguments())
	if len(args) != 2 {
		return b.sendText(msg.Chat.ID, "Usage: /unshare list n (n from /list)")
	}
	list, err := b.listAt(msg.Chat.ID, ws, args[0])
	if err != nil {
		return b.sendText(msg.Chat.ID, escape(err.Error()))
	}
	if _, err := ws.Collaborators.Load(ctx, list.ID); err != nil {
		return b.sendText(msg.Chat.ID, view.Error(ws.Collaborators.State().Err))
	}
	ids := b.getSnapshot(msg.Chat.ID).collaborators
	i, err := rowIndex(args[1], len(ids))
	if err != nil {
		return b.sendText(msg.Chat.ID, escape(fmt.Sprintf("%v. Show the list with /list %s", err, args[0])))
	}
	c, ok := ws.Collaborators.Find(ids[i])
	if !ok {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("That collaborator is not on “%s”. Show the list with /list %s", escape(list.Name), escape(args[0])))
	}
	if err := ws.Collaborators.Remove(ctx, c.ID); err != nil {
		return b.sendText(msg.Chat.ID, view.Error(ws.Collaborators.State().Err))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("🚫 %s removed from “%s”.", escape(c.Email), escape(list.Name)))
}
