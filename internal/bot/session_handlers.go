package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"task-manager/internal/remote"
	"task-manager/internal/service"
	"task-manager/internal/view"
)

// credentials reads "email password" and removes the message carrying the
// password from the chat.
func (b *Bot) credentials(msg *tgbotapi.Message) (email, password string, ok bool) {
	args := strings.Fields(msg.CommandArguments())
	if len(args) > 0 {
		if _, err := b.out.Request(tgbotapi.NewDeleteMessage(msg.Chat.ID, msg.MessageID)); err != nil {
			b.log.Debug().Err(err).Msg("delete credentials message")
		}
	}
	if len(args) != 2 {
		return "", "", false
	}
	return args[0], args[1], true
}

func (b *Bot) handleSignUp(ctx context.Context, msg *tgbotapi.Message, ws *service.Workspace) error {
	email, password, ok := b.credentials(msg)
	if !ok {
		return b.sendText(msg.Chat.ID, "Usage: /signup email password")
	}
	user, err := ws.Session.SignUp(ctx, email, password)
	if err != nil {
		return b.sendText(msg.Chat.ID, view.Error(ws.Session.State().Err))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("🎉 Account %s created. Sign in with /signin email password.", escape(user.Email)))
}

func (b *Bot) handleSignIn(ctx context.Context, msg *tgbotapi.Message, ws *service.Workspace) error {
	email, password, ok := b.credentials(msg)
	if !ok {
		return b.sendText(msg.Chat.ID, "Usage: /signin email password")
	}
	b.clearDialog(msg.Chat.ID)
	user, err := ws.Session.SignIn(ctx, email, password)
	if err != nil {
		return b.sendText(msg.Chat.ID, view.Error(ws.Session.State().Err))
	}
	b.setSnapshot(msg.Chat.ID, func(s *snapshot) { *s = snapshot{} })

	text := fmt.Sprintf("👋 Signed in as %s.", escape(user.Email))
	if err := ws.Refresh(ctx); err != nil {
		b.log.Warn().Err(err).Int64("chat_id", msg.Chat.ID).Msg("initial refresh")
	} else {
		text += fmt.Sprintf(" You have %d open tasks. See /tasks.", countOpen(ws))
	}
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleSignOut(ctx context.Context, msg *tgbotapi.Message, ws *service.Workspace) error {
	err := ws.Session.SignOut(ctx)
	b.clearDialog(msg.Chat.ID)
	b.setSnapshot(msg.Chat.ID, func(s *snapshot) { *s = snapshot{} })
	if err != nil {
		return b.sendText(msg.Chat.ID, view.Error(ws.Session.State().Err))
	}
	return b.sendText(msg.Chat.ID, "👋 Signed out.")
}

func (b *Bot) handleProfile(ctx context.Context, msg *tgbotapi.Message, ws *service.Workspace) error {
	user, err := ws.Session.CurrentUser(ctx)
	if err != nil {
		return b.sendText(msg.Chat.ID, view.Error(ws.Session.State().Err))
	}
	return b.sendText(msg.Chat.ID, view.Profile(user))
}

func (b *Bot) handleEmail(ctx context.Context, msg *tgbotapi.Message, ws *service.Workspace) error {
	email := strings.TrimSpace(msg.CommandArguments())
	if email == "" {
		return b.sendText(msg.Chat.ID, "Usage: /email new@address")
	}
	return b.updateProfile(ctx, msg.Chat.ID, ws, remote.UserUpdate{Email: &email})
}

func (b *Bot) handlePassword(ctx context.Context, msg *tgbotapi.Message, ws *service.Workspace) error {
	password := strings.TrimSpace(msg.CommandArguments())
	if password == "" {
		return b.sendText(msg.Chat.ID, "Usage: /password new-password")
	}
	if _, err := b.out.Request(tgbotapi.NewDeleteMessage(msg.Chat.ID, msg.MessageID)); err != nil {
		b.log.Debug().Err(err).Msg("delete password message")
	}
	return b.updateProfile(ctx, msg.Chat.ID, ws, remote.UserUpdate{Password: &password})
}

func (b *Bot) handleName(ctx context.Context, msg *tgbotapi.Message, ws *service.Workspace) error {
	name := strings.TrimSpace(msg.CommandArguments())
	if name == "" {
		return b.sendText(msg.Chat.ID, "Usage: /name Your Name")
	}
	return b.updateProfile(ctx, msg.Chat.ID, ws, remote.UserUpdate{Name: &name})
}

func (b *Bot) handleAvatar(ctx context.Context, msg *tgbotapi.Message, ws *service.Workspace) error {
	url := strings.TrimSpace(msg.CommandArguments())
	if url == "" {
		return b.sendText(msg.Chat.ID, "Usage: /avatar https://link/to/picture.png")
	}
	return b.updateProfile(ctx, msg.Chat.ID, ws, remote.UserUpdate{AvatarURL: &url})
}

func (b *Bot) updateProfile(ctx context.Context, chatID int64, ws *service.Workspace, update remote.UserUpdate) error {
	user, err := ws.Session.UpdateProfile(ctx, update)
	if err != nil {
		return b.sendText(chatID, view.Error(ws.Session.State().Err))
	}
	return b.sendText(chatID, "✅ Profile updated.\n\n"+view.Profile(&user))
}

func countOpen(ws *service.Workspace) int {
	return len(view.FilterTasks(ws.Tasks.Rows(), view.TaskFilter{Status: view.StatusOpen}))
}
