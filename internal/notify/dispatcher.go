package notify

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"marpro/internal/metrics"
	"marpro/internal/models"

	"github.com/rs/zerolog"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

const (
	KindConfirmation = "confirmation"
	KindCompletion   = "completion"
)

// Message is a rendered e-mail.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Transport delivers a rendered message.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

type wording struct {
	Subject string
	Heading string
	Intro   string
}

// wordings are keyed by kind, then by service type; "" is the generic order.
var wordings = map[string]map[models.ServiceType]wording{
	KindConfirmation: {
		models.ServiceContainers: {
			Subject: "Potvrzení objednávky kontejneru",
			Heading: "Děkujeme za objednávku kontejneru",
			Intro:   "přijali jsme Vaši objednávku kontejneru. Brzy Vás budeme kontaktovat a domluvíme podrobnosti přistavení.",
		},
		models.ServiceExcavators: {
			Subject: "Potvrzení objednávky bagru",
			Heading: "Děkujeme za objednávku bagru",
			Intro:   "přijali jsme Vaši objednávku bagru. Brzy Vás budeme kontaktovat a potvrdíme termín.",
		},
		models.ServiceConstructions: {
			Subject: "Potvrzení poptávky stavebních prací",
			Heading: "Děkujeme za poptávku stavebních prací",
			Intro:   "přijali jsme Vaši poptávku stavebních prací. Brzy Vás budeme kontaktovat.",
		},
		"": {
			Subject: "Potvrzení objednávky",
			Heading: "Děkujeme za objednávku",
			Intro:   "přijali jsme Vaši objednávku. Brzy Vás budeme kontaktovat.",
		},
	},
	KindCompletion: {
		models.ServiceContainers: {
			Subject: "Objednávka kontejneru byla dokončena",
			Heading: "Kontejner byl odvezen",
			Intro:   "Vaše objednávka kontejneru byla dokončena.",
		},
		models.ServiceExcavators: {
			Subject: "Objednávka bagru byla dokončena",
			Heading: "Práce bagru byla dokončena",
			Intro:   "Vaše objednávka bagru byla dokončena.",
		},
		models.ServiceConstructions: {
			Subject: "Stavební práce byly dokončeny",
			Heading: "Stavební práce byly dokončeny",
			Intro:   "Vaše zakázka stavebních prací byla dokončena.",
		},
		"": {
			Subject: "Objednávka byla dokončena",
			Heading: "Objednávka byla dokončena",
			Intro:   "Vaše objednávka byla dokončena.",
		},
	},
}

var serviceLabels = map[models.ServiceType]string{
	models.ServiceContainers:    "Velikost kontejneru",
	models.ServiceExcavators:    "Typ bagru",
	models.ServiceConstructions: "Typ stavebních prací",
}

const (
	closingConfirmation = "Děkujeme za Vaši důvěru."
	closingCompletion   = "Děkujeme, že jste využili našich služeb. Budeme rádi, když se na nás znovu obrátíte."
)

type mailData struct {
	Subject      string
	Heading      string
	Intro        string
	CustomerName string
	Date         string
	TimeRange    string
	ServiceLabel string
	ServiceValue string
	Location     []string
	Message      string
	Closing      string
	Signature    string
}

// Dispatcher renders customer notifications and hands them to a transport.
type Dispatcher struct {
	transport Transport
	signature string
	html      *htmltemplate.Template
	text      *texttemplate.Template
	logger    *zerolog.Logger
}

func NewDispatcher(transport Transport, signature string, logger *zerolog.Logger) (*Dispatcher, error) {
	html, err := htmltemplate.ParseFS(templatesFS, "templates/order.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse html template: %w", err)
	}
	text, err := texttemplate.ParseFS(templatesFS, "templates/order.txt.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse text template: %w", err)
	}
	return &Dispatcher{
		transport: transport,
		signature: signature,
		html:      html,
		text:      text,
		logger:    logger,
	}, nil
}

func (d *Dispatcher) SendOrderConfirmation(ctx context.Context, order *models.Order) error {
	return d.send(ctx, KindConfirmation, order)
}

func (d *Dispatcher) SendOrderCompletion(ctx context.Context, order *models.Order) error {
	return d.send(ctx, KindCompletion, order)
}

func (d *Dispatcher) send(ctx context.Context, kind string, order *models.Order) error {
	msg, err := d.Render(kind, order)
	if err == nil {
		err = d.transport.Send(ctx, msg)
	}
	metrics.IncNotification(kind, err)
	if err != nil {
		return fmt.Errorf("send %s for order %s: %w", kind, order.ID, err)
	}

	d.logger.Info().Str("kind", kind).Str("order_id", order.ID).Msg("notification sent")
	return nil
}

// Render builds the message without sending it.
func (d *Dispatcher) Render(kind string, order *models.Order) (Message, error) {
	if order.Customer.Email == "" {
		return Message{}, fmt.Errorf("order %s has no e-mail address", order.ID)
	}

	data := d.buildData(kind, order)

	var html, text bytes.Buffer
	if err := d.html.Execute(&html, data); err != nil {
		return Message{}, fmt.Errorf("render html: %w", err)
	}
	if err := d.text.Execute(&text, data); err != nil {
		return Message{}, fmt.Errorf("render text: %w", err)
	}

	return Message{
		To:      order.Customer.Email,
		Subject: data.Subject,
		HTML:    html.String(),
		Text:    text.String(),
	}, nil
}

func (d *Dispatcher) buildData(kind string, order *models.Order) mailData {
	byType := wordings[kind]
	w, ok := byType[order.Service.Type]
	if !ok {
		w = byType[""]
	}

	data := mailData{
		Subject:      w.Subject,
		Heading:      w.Heading,
		Intro:        w.Intro,
		CustomerName: order.Customer.FullName(),
		Date:         displayDate(order.Schedule),
		TimeRange:    order.Schedule.TimeRange(),
		Location:     locationLines(order.Location),
		Signature:    d.signature,
		Closing:      closingCompletion,
	}
	if label, ok := serviceLabels[order.Service.Type]; ok && order.Service.Variant != "" {
		data.ServiceLabel = label
		data.ServiceValue = order.Service.Variant
	}
	if kind == KindConfirmation {
		data.Closing = closingConfirmation
		data.Message = order.Message
	}
	return data
}

// displayDate renders "01.07.2025" or "01.07.2025 - 05.07.2025" for ranges.
func displayDate(s models.Schedule) string {
	date := formatDate(s.Date)
	if s.ReservationType.IsRange() && s.EndDate != "" && s.EndDate != s.Date {
		return date + " - " + formatDate(s.EndDate)
	}
	return date
}

func formatDate(raw string) string {
	t, err := time.Parse(models.DateLayout, raw)
	if err != nil {
		return raw
	}
	return t.Format(models.DisplayDateLayout)
}

// locationLines is empty when no address part is filled in.
func locationLines(l models.Location) []string {
	if l.IsEmpty() {
		return nil
	}
	var lines []string
	for _, part := range []string{
		l.Address,
		l.Street,
		strings.TrimSpace(l.Zip + " " + l.City),
		l.Country,
	} {
		if part = strings.TrimSpace(part); part != "" {
			lines = append(lines, part)
		}
	}
	return lines
}
