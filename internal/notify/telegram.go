package notify

import (
	"errors"
	"fmt"
	"strings"

	"marpro/internal/domain"
	"marpro/internal/events"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// telegramMaxLength is the Bot API limit for a single message text.
const telegramMaxLength = 4096

var serviceNames = map[string]string{
	"containers":    "Kontejner",
	"excavators":    "Bagr",
	"constructions": "Stavební práce",
}

var statusNames = map[string]string{
	"pending":     "čeká",
	"in_progress": "probíhá",
	"completed":   "dokončeno",
	"cancelled":   "zrušeno",
}

// TelegramNotifier forwards domain events to the operators' chats.
type TelegramNotifier struct {
	bot     domain.TelegramSender
	chatIDs []int64
	logger  *zerolog.Logger
}

func NewTelegramNotifier(bot domain.TelegramSender, chatIDs []int64, logger *zerolog.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		bot:     bot,
		chatIDs: chatIDs,
		logger:  logger,
	}
}

// Register subscribes the notifier to every operator-facing event.
func (n *TelegramNotifier) Register(bus *events.EventBus) {
	bus.Subscribe(events.EventOrderCreated, n.handle(formatOrderCreated))
	bus.Subscribe(events.EventOrderStatusChanged, n.handle(formatOrderStatus))
	bus.Subscribe(events.EventBookingCompleted, n.handle(formatBookingEvent))
	bus.Subscribe(events.EventBookingCancelled, n.handle(formatBookingEvent))
	bus.Subscribe(events.EventWorkApplicationCreated, n.handle(formatWorkApplication))
}

func (n *TelegramNotifier) handle(format func(*events.Event) (string, error)) events.EventHandler {
	return func(event *events.Event) error {
		text, err := format(event)
		if err != nil {
			return fmt.Errorf("format %s: %w", event.Type, err)
		}
		err = n.Broadcast(text)
		if err != nil {
			n.logger.Warn().Err(err).Str("event", event.Type).Msg("operator notification failed")
		}
		return err
	}
}

// Broadcast sends text to every operator chat and joins the failures.
func (n *TelegramNotifier) Broadcast(text string) error {
	text = truncate(text, telegramMaxLength)

	var errs []error
	for _, chatID := range n.chatIDs {
		msg := tgbotapi.NewMessage(chatID, text)
		msg.DisableWebPagePreview = true
		if _, err := n.bot.Send(msg); err != nil {
			errs = append(errs, fmt.Errorf("chat %d: %w", chatID, err))
		}
	}
	return errors.Join(errs...)
}

func formatOrderCreated(event *events.Event) (string, error) {
	var p events.OrderEventPayload
	if err := event.Decode(&p); err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🆕 Nová objednávka: %s", serviceName(p.ServiceType))
	if p.Variant != "" {
		fmt.Fprintf(&b, " (%s)", p.Variant)
	}
	fmt.Fprintf(&b, "\nZákazník: %s\nTelefon: %s\nE-mail: %s\nDatum: %s", p.Customer, p.Phone, p.Email, p.Date)
	if p.EndDate != "" && p.EndDate != p.Date {
		fmt.Fprintf(&b, " - %s", p.EndDate)
	}
	if p.TimeRange != "" {
		fmt.Fprintf(&b, "\nČas: %s", p.TimeRange)
	}
	if p.City != "" {
		fmt.Fprintf(&b, "\nMísto: %s", p.City)
	}
	fmt.Fprintf(&b, "\nID: %s", p.OrderID)
	return b.String(), nil
}

func formatOrderStatus(event *events.Event) (string, error) {
	var p events.OrderEventPayload
	if err := event.Decode(&p); err != nil {
		return "", err
	}
	return fmt.Sprintf("📋 Objednávka %s (%s, %s): %s",
		p.OrderID, serviceName(p.ServiceType), p.Customer, statusName(p.Status)), nil
}

func formatBookingEvent(event *events.Event) (string, error) {
	var p events.BookingEventPayload
	if err := event.Decode(&p); err != nil {
		return "", err
	}

	icon := "✅"
	if event.Type == events.EventBookingCancelled {
		icon = "❌"
	}
	date := p.Date
	if p.EndDate != "" && p.EndDate != p.Date {
		date += " - " + p.EndDate
	}
	if p.TimeRange != "" {
		date += " " + p.TimeRange
	}
	return fmt.Sprintf("%s Rezervace %s %s, %s: %s",
		icon, serviceName(p.EquipmentType), p.EquipmentID, date, statusName(p.Status)), nil
}

func formatWorkApplication(event *events.Event) (string, error) {
	var p events.WorkApplicationEventPayload
	if err := event.Decode(&p); err != nil {
		return "", err
	}
	return fmt.Sprintf("👷 Nová žádost o práci\nJméno: %s\nPozice: %s\nTelefon: %s\nE-mail: %s",
		p.Name, p.Position, p.Phone, p.Email), nil
}

func serviceName(st string) string {
	if name, ok := serviceNames[st]; ok {
		return name
	}
	return st
}

func statusName(status string) string {
	if name, ok := statusNames[status]; ok {
		return name
	}
	return status
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-1]) + "…"
}
