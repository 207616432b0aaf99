package ui

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"gopkg.in/telebot.v3"

	"igrepost/pkg/config"
)

// NotificationSender interface for platform-specific notification implementations
type NotificationSender interface {
	Send(title, message string) error
}

// LinuxNotificationSender sends notifications on Linux using notify-send
type LinuxNotificationSender struct{}

func (l *LinuxNotificationSender) Send(title, message string) error {
	return exec.Command("notify-send", "--app-name=igrepost", title, message).Run()
}

// MacOSNotificationSender sends notifications on macOS using osascript
type MacOSNotificationSender struct{}

func (m *MacOSNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`display notification %q with title %q`, message, title)
	return exec.Command("osascript", "-e", script).Run()
}

// WindowsNotificationSender sends notifications on Windows using PowerShell
type WindowsNotificationSender struct{}

func (w *WindowsNotificationSender) Send(title, message string) error {
	escape := func(s string) string { return strings.ReplaceAll(s, "<", "&lt;") }
	script := fmt.Sprintf(`
		[Windows.UI.Notifications.ToastNotificationManager, Windows.UI.Notifications, ContentType = WindowsRuntime] | Out-Null
		[Windows.Data.Xml.Dom.XmlDocument, Windows.Data.Xml.Dom.XmlDocument, ContentType = WindowsRuntime] | Out-Null
		$doc = [Windows.Data.Xml.Dom.XmlDocument]::new()
		$doc.LoadXml("<toast><visual><binding template='ToastText02'><text id='1'>%s</text><text id='2'>%s</text></binding></visual></toast>")
		[Windows.UI.Notifications.ToastNotificationManager]::CreateToastNotifier("igrepost").Show([Windows.UI.Notifications.ToastNotification]::new($doc))
	`, escape(title), escape(message))
	return exec.Command("powershell", "-NoProfile", "-NonInteractive", "-Command", script).Run()
}

// desktopSender picks the sender for the current platform, nil if none
func desktopSender() NotificationSender {
	switch runtime.GOOS {
	case "linux":
		return &LinuxNotificationSender{}
	case "darwin":
		return &MacOSNotificationSender{}
	case "windows":
		return &WindowsNotificationSender{}
	default:
		return nil
	}
}

// telegramAPI is the part of *telebot.Bot used for sending
type telegramAPI interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
}

// TelegramSender delivers notifications to one Telegram chat
type TelegramSender struct {
	bot  telegramAPI
	chat *telebot.Chat
}

// NewTelegramSender creates a sender for chatID. The bot is created offline
// so construction does not call the Telegram API.
func NewTelegramSender(token string, chatID int64) (*TelegramSender, error) {
	bot, err := telebot.NewBot(telebot.Settings{
		Token:   token,
		Offline: true,
		Client:  &http.Client{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return &TelegramSender{bot: bot, chat: &telebot.Chat{ID: chatID}}, nil
}

// Send posts "title: message" to the chat
func (t *TelegramSender) Send(title, message string) error {
	text := title
	if message != "" {
		text = title + "\n" + message
	}
	_, err := t.bot.Send(t.chat, text, &telebot.SendOptions{DisableWebPagePreview: true})
	return err
}

// Notifier handles notifications: it always prints to the console and
// forwards to a sender when one is configured.
type Notifier struct {
	sender     NotificationSender
	out        io.Writer
	onComplete bool
	onError    bool

	mu      sync.Mutex
	lastErr error
}

// NewNotifier creates a new Notifier based on the current platform
func NewNotifier() *Notifier {
	return &Notifier{sender: desktopSender(), out: os.Stdout, onComplete: true, onError: true}
}

// NewNotifierWithSender creates a Notifier that prints to out and forwards to sender
func NewNotifierWithSender(sender NotificationSender, out io.Writer) *Notifier {
	if out == nil {
		out = io.Discard
	}
	return &Notifier{sender: sender, out: out, onComplete: true, onError: true}
}

// NewNotifierFromConfig builds the notifier selected by cfg. With
// notifications disabled it only prints to the console.
func NewNotifierFromConfig(cfg config.NotificationConfig) (*Notifier, error) {
	n := &Notifier{out: os.Stdout, onComplete: cfg.OnComplete, onError: cfg.OnError}
	if !cfg.Enabled {
		return n, nil
	}

	switch cfg.NotificationType {
	case "", "desktop":
		n.sender = desktopSender()
	case "telegram":
		sender, err := NewTelegramSender(cfg.TelegramToken, cfg.TelegramChatID)
		if err != nil {
			return nil, err
		}
		n.sender = sender
	case "none", "terminal":
	default:
		return nil, fmt.Errorf("unknown notification type %q", cfg.NotificationType)
	}
	return n, nil
}

func (n *Notifier) forward(title, message string) {
	if n.sender != nil {
		err := n.sender.Send(title, message)
		n.mu.Lock()
		n.lastErr = err
		n.mu.Unlock()
	}
}

// LastError returns the result of the most recent forwarded notification
func (n *Notifier) LastError() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.lastErr
}

// SendNotification prints an informational notification and forwards it
func (n *Notifier) SendNotification(title, message string) {
	fmt.Fprintf(n.out, "\n%s: %s\n", Cyan(title), Yellow(message))
	n.forward(title, message)
}

// SendError sends an error notification
func (n *Notifier) SendError(title, message string) {
	fmt.Fprintf(n.out, "\n%s: %s\n", Red(title), Red(message))
	if n.onError {
		n.forward(title, message)
	}
}

// SendSuccess sends a success notification
func (n *Notifier) SendSuccess(title, message string) {
	fmt.Fprintf(n.out, "\n%s: %s\n", Green(title), Green(message))
	if n.onComplete {
		n.forward(title, message)
	}
}
